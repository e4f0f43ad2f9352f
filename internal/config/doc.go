// Package config manages user-level settings stored at ~/.hangar/config.yaml.
// It persists the ordered scenery and aircraft path lists, the simulator data
// directory, and scalar keys such as the catalog URL and log settings.
package config
