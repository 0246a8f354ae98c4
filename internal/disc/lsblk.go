package disc

import (
	"bufio"
	"context"
	"errors"
	"strings"
)

// ReadLabel returns the filesystem label lsblk reports for devpath. It is
// the fallback when udev did not carry ID_FS_LABEL.
func ReadLabel(ctx context.Context, runner CommandRunner, devpath string) (string, error) {
	devpath = strings.TrimSpace(devpath)
	if devpath == "" {
		return "", errors.New("no device specified")
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	out, err := runner.Run(ctx, "lsblk", "-P", "-o", "LABEL,FSTYPE", devpath)
	if err != nil {
		return "", err
	}
	label, _ := ParseLSBLK(string(out))
	if label == "" {
		return "", errors.New("no disc label found")
	}
	return label, nil
}

// ParseLSBLK returns the first LABEL/FSTYPE pair from `lsblk -P` output.
func ParseLSBLK(output string) (label, fstype string) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		pairs := parsePairs(line)
		if len(pairs) == 0 {
			continue
		}
		return pairs["LABEL"], pairs["FSTYPE"]
	}
	return "", ""
}

// parsePairs splits KEY="value with spaces" KEY2="x" lines.
func parsePairs(line string) map[string]string {
	out := make(map[string]string)
	for len(line) > 0 {
		line = strings.TrimLeft(line, " \t")
		key, rest, ok := strings.Cut(line, "=")
		if !ok {
			break
		}
		var value string
		if strings.HasPrefix(rest, `"`) {
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				value, line = rest[1:], ""
			} else {
				value, line = rest[1:end+1], rest[end+2:]
			}
		} else {
			value, line, _ = strings.Cut(rest, " ")
		}
		out[strings.TrimSpace(key)] = value
	}
	return out
}
