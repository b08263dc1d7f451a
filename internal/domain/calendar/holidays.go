package calendar

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type holidayFile struct {
	Holidays []struct {
		Date string `yaml:"date"`
		Name string `yaml:"name"`
	} `yaml:"holidays"`
}

// ParseHolidays reads a YAML document of the form
//
//	holidays:
//	  - date: 2026-12-25
//	    name: Christmas
//
// and returns the holidays keyed by date.
func ParseHolidays(r io.Reader) (map[string]string, error) {
	var f holidayFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("decode holidays: %w", err)
	}

	out := make(map[string]string, len(f.Holidays))
	for _, h := range f.Holidays {
		d, err := ParseDate(h.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", h.Name, err)
		}
		key := d.Format(DateLayout)
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("holiday %s listed twice", key)
		}
		out[key] = h.Name
	}
	return out, nil
}

// LoadHolidaysFile reads holidays from path. An empty path yields no holidays.
func LoadHolidaysFile(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open holidays file: %w", err)
	}
	defer f.Close()
	return ParseHolidays(f)
}
