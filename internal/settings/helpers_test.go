package settings

import "github.com/skyhangar/hangar/internal/catalog"

func catalogDefault(u string) catalog.Option {
	return catalog.WithDefaultURL(func() string { return u })
}
