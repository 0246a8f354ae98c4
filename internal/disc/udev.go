package disc

import (
	"bufio"
	"strconv"
	"strings"
)

// Properties is the KEY=value set udev reports for a device.
type Properties map[string]string

// ParseProperties parses `udevadm info --query=property` output. Values
// wrapped in single or double quotes are unquoted.
func ParseProperties(output string) Properties {
	props := make(Properties)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "E: ")
		key, value, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			continue
		}
		props[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	return props
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			return value[1 : len(value)-1]
		}
	}
	return value
}

// Flag reports whether key is set to a truthy udev value.
func (p Properties) Flag(key string) bool {
	switch strings.TrimSpace(p[key]) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// Int returns key as an integer, or zero.
func (p Properties) Int(key string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(p[key]))
	return n
}

// IsOptical reports whether the device is a CD-ROM class drive.
func (p Properties) IsOptical() bool {
	return p.Flag("ID_CDROM")
}

// Media summarizes what udev knows about the loaded medium.
type Media struct {
	Present     bool
	Label       string
	FSType      string
	BluRay      bool
	DVD         bool
	AudioTracks int
}

// Media extracts the medium description from the properties.
func (p Properties) Media() Media {
	return Media{
		Present:     p.Flag("ID_CDROM_MEDIA"),
		Label:       decodeUdevLabel(p["ID_FS_LABEL"]),
		FSType:      p["ID_FS_TYPE"],
		BluRay:      p.Flag("ID_CDROM_MEDIA_BD"),
		DVD:         p.Flag("ID_CDROM_MEDIA_DVD"),
		AudioTracks: p.Int("ID_CDROM_MEDIA_TRACK_COUNT_AUDIO"),
	}
}

// decodeUdevLabel undoes udev's \x20 escaping of spaces in labels.
func decodeUdevLabel(label string) string {
	return strings.TrimSpace(strings.ReplaceAll(label, `\x20`, " "))
}

// Hardware is the static description of a drive built from udev.
type Hardware struct {
	DevPath    string
	Maker      string
	Model      string
	Serial     string
	Firmware   string
	Connection string
	Location   string
	ReadCD     bool
	ReadDVD    bool
	ReadBD     bool
}

// Hardware extracts the drive description from the properties.
func (p Properties) Hardware() Hardware {
	return Hardware{
		DevPath:    p["DEVNAME"],
		Maker:      decodeUdevLabel(firstNonEmpty(p["ID_VENDOR_ENC"], p["ID_VENDOR"])),
		Model:      decodeUdevLabel(firstNonEmpty(p["ID_MODEL_ENC"], p["ID_MODEL"])),
		Serial:     firstNonEmpty(p["ID_SERIAL_SHORT"], p["ID_SERIAL"]),
		Firmware:   p["ID_REVISION"],
		Connection: p["ID_BUS"],
		Location:   p["ID_PATH"],
		ReadCD:     p.Flag("ID_CDROM"),
		ReadDVD:    p.Flag("ID_CDROM_DVD"),
		ReadBD:     p.Flag("ID_CDROM_BD"),
	}
}

// IdentityKey is the reconnection-proof drive identity: maker, model and
// serial joined. Empty when udev reported none of them.
func (h Hardware) IdentityKey() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{h.Maker, h.Model, h.Serial} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, strings.ReplaceAll(part, " ", "_"))
		}
	}
	return strings.Join(parts, "_")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
