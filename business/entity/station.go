package entity

import (
	"fmt"
)

type Station struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	NameEn          string   `json:"name_en"`
	URL             string   `json:"url"`
	FallbackURL     string   `json:"fallback_url,omitempty"`
	AlternativeURLs []string `json:"alternative_urls,omitempty"`
	Logo            string   `json:"logo"`
	IconClass       string   `json:"icon_class,omitempty"`
	Description     string   `json:"description"`
}

// Clone returns a deep copy so snapshots never alias catalog memory.
func (s *Station) Clone() *Station {
	if s == nil {
		return nil
	}
	c := *s
	if s.AlternativeURLs != nil {
		c.AlternativeURLs = append([]string(nil), s.AlternativeURLs...)
	}
	return &c
}

type Catalog []*Station

func (c Catalog) Find(id string) (*Station, int) {
	for i, s := range c {
		if s.ID == id {
			return s, i
		}
	}
	return nil, -1
}

func (c Catalog) Next(id string) *Station {
	if len(c) == 0 {
		return nil
	}
	_, idx := c.Find(id)
	if idx < 0 || idx == len(c)-1 {
		return c[0]
	}
	return c[idx+1]
}

func (c Catalog) Prev(id string) *Station {
	if len(c) == 0 {
		return nil
	}
	_, idx := c.Find(id)
	if idx <= 0 {
		return c[len(c)-1]
	}
	return c[idx-1]
}

func (c Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for i, s := range c {
		if s == nil {
			return fmt.Errorf("station #%d is empty", i)
		}
		if s.ID == "" {
			return fmt.Errorf("station #%d has no id", i)
		}
		if _, ok := seen[s.ID]; ok {
			return fmt.Errorf("duplicate station id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.URL == "" {
			return fmt.Errorf("station %q has no url", s.ID)
		}
	}
	return nil
}
