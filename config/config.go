/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package config decodes and validates the configuration surface of
// spec.md §6, collapsing nabbar-golib/config's pluggable Component/
// ComponentList registry (meant for an arbitrary set of subsystems) down
// to the single, fully-enumerated Config struct this gateway needs, while
// keeping the same Viper-decode-then-validator-tag-validate shape.
package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// StorageType selects the storage.Backend implementation, per spec.md §6.
type StorageType string

const (
	InMemory   StorageType = "InMemory"
	Filesystem StorageType = "Filesystem"
)

// BucketType mirrors model.BucketType without importing the model package,
// keeping config free of a dependency cycle risk as other packages grow.
type BucketType string

const (
	GeneralPurpose BucketType = "GeneralPurpose"
	Directory      BucketType = "Directory"
)

// BucketPermission grants one user a set of permissions on one bucket (or
// "*" for every bucket), per spec.md §3's S3User type.
type BucketPermission struct {
	BucketName  string   `mapstructure:"bucketName" validate:"required"`
	Permissions []string `mapstructure:"permissions" validate:"required,min=1,dive,oneof=read write delete list *"`
}

// User is one configured credential, per spec.md §3/§6.
type User struct {
	AccessKeyId       string             `mapstructure:"accessKeyId" validate:"required"`
	SecretAccessKey   string             `mapstructure:"secretAccessKey" validate:"required"`
	Name              string             `mapstructure:"name"`
	BucketPermissions []BucketPermission `mapstructure:"bucketPermissions"`
}

// AuthConfig is spec.md §6's Authentication.* surface.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Users   []User `mapstructure:"users" validate:"required_if=Enabled true,dive"`
}

// FilesystemConfig is spec.md §6's FilesystemStorage.* surface.
type FilesystemConfig struct {
	DataDirectory     string `mapstructure:"dataDirectory" validate:"required_if=StorageType Filesystem"`
	MetadataDirectory string `mapstructure:"metadataDirectory" validate:"required_if=StorageType Filesystem"`
}

// CleanupConfig is spec.md §6's MetadataCleanup.* surface.
type CleanupConfig struct {
	CleanupIntervalMinutes int `mapstructure:"cleanupIntervalMinutes" validate:"min=0"`
	BatchSize              int `mapstructure:"batchSize" validate:"min=0"`
}

// BucketDefaultsConfig is spec.md §6's BucketDefaults.* surface.
type BucketDefaultsConfig struct {
	Type BucketType `mapstructure:"type" validate:"required,oneof=GeneralPurpose Directory"`
}

// MultipartCleanupConfig is spec.md §6's MultipartUploadCleanup.* surface.
type MultipartCleanupConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Config is the full decoded configuration surface of spec.md §6.
type Config struct {
	Listen                 string                 `mapstructure:"listen" validate:"required,hostname_port"`
	Authentication         AuthConfig             `mapstructure:"authentication"`
	StorageType            StorageType            `mapstructure:"storageType" validate:"required,oneof=InMemory Filesystem"`
	FilesystemStorage      FilesystemConfig       `mapstructure:"filesystemStorage"`
	MetadataCleanup        CleanupConfig          `mapstructure:"metadataCleanup"`
	BucketDefaults         BucketDefaultsConfig   `mapstructure:"bucketDefaults"`
	MultipartUploadCleanup MultipartCleanupConfig `mapstructure:"multipartUploadCleanup"`
}

// applyDefaults fills the zero-value defaults spec.md §6 calls for:
// region us-east-1 is handled in model.NewBucket, not here; the defaults
// this layer owns are the ones with no sensible backend-side fallback.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:9000")
	v.SetDefault("storageType", string(InMemory))
	v.SetDefault("bucketDefaults.type", string(GeneralPurpose))
	v.SetDefault("metadataCleanup.cleanupIntervalMinutes", 15)
	v.SetDefault("metadataCleanup.batchSize", 100)
	v.SetDefault("multipartUploadCleanup.enabled", true)
}

// Load reads, decodes, and validates the configuration file at path
// (format inferred from its extension by Viper: yaml, json, toml).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	// required_if on FilesystemConfig cannot see StorageType, which lives on
	// the parent struct, so the Filesystem requirement is checked here.
	if cfg.StorageType == Filesystem && (cfg.FilesystemStorage.DataDirectory == "" || cfg.FilesystemStorage.MetadataDirectory == "") {
		return nil, fmt.Errorf("validating config %s: filesystemStorage.dataDirectory and filesystemStorage.metadataDirectory are required when storageType is Filesystem", path)
	}

	return &cfg, nil
}

// Watch wires viper.WatchConfig (backed by fsnotify) so Authentication.Users
// can be rotated without a restart, per SPEC_FULL.md §10.3. It returns a
// channel receiving the newly decoded Config on every change; decode or
// validation failures are logged by the caller-supplied onError and the
// previous Config keeps serving.
func Watch(path string, onError func(error)) (<-chan *Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	out := make(chan *Config, 1)

	v.OnConfigChange(func(_ fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			onError(fmt.Errorf("decoding reloaded config: %w", err))
			return
		}
		if err := validator.New().Struct(&cfg); err != nil {
			onError(fmt.Errorf("validating reloaded config: %w", err))
			return
		}
		out <- &cfg
	})
	v.WatchConfig()

	return out, nil
}
