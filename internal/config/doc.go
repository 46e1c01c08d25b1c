// Package config defines the settings driving a publisher run and provides
// helpers to load, validate and save them in YAML format.
//
// The artifact directory may also be supplied through the CHROMEDRIVER_PATH
// environment variable, which takes precedence over the settings file.
package config
