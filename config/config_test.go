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

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nabbar/s3gw/config"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
authentication:
  enabled: false
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("Listen default = %q, want 0.0.0.0:9000", cfg.Listen)
	}
	if cfg.StorageType != config.InMemory {
		t.Errorf("StorageType default = %q, want InMemory", cfg.StorageType)
	}
	if cfg.BucketDefaults.Type != config.GeneralPurpose {
		t.Errorf("BucketDefaults.Type default = %q, want GeneralPurpose", cfg.BucketDefaults.Type)
	}
	if cfg.MetadataCleanup.CleanupIntervalMinutes != 15 {
		t.Errorf("MetadataCleanup.CleanupIntervalMinutes default = %d, want 15", cfg.MetadataCleanup.CleanupIntervalMinutes)
	}
	if cfg.MetadataCleanup.BatchSize != 100 {
		t.Errorf("MetadataCleanup.BatchSize default = %d, want 100", cfg.MetadataCleanup.BatchSize)
	}
	if !cfg.MultipartUploadCleanup.Enabled {
		t.Error("MultipartUploadCleanup.Enabled default = false, want true")
	}
}

func TestLoadDecodesUsers(t *testing.T) {
	path := writeTempConfig(t, `
listen: "127.0.0.1:9000"
storageType: Filesystem
filesystemStorage:
  dataDirectory: /tmp/s3gw/data
  metadataDirectory: /tmp/s3gw/meta
authentication:
  enabled: true
  users:
    - accessKeyId: AKIAEXAMPLE
      secretAccessKey: secretkey1234567890
      name: alice
      bucketPermissions:
        - bucketName: "*"
          permissions: ["read", "write"]
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Authentication.Users) != 1 {
		t.Fatalf("Users count = %d, want 1", len(cfg.Authentication.Users))
	}
	u := cfg.Authentication.Users[0]
	if u.AccessKeyId != "AKIAEXAMPLE" || u.SecretAccessKey != "secretkey1234567890" {
		t.Errorf("unexpected credentials decoded: %+v", u)
	}
	if len(u.BucketPermissions) != 1 || u.BucketPermissions[0].BucketName != "*" {
		t.Errorf("unexpected bucket permissions: %+v", u.BucketPermissions)
	}
}

func TestLoadRejectsInvalidBucketDefaultsType(t *testing.T) {
	path := writeTempConfig(t, `
bucketDefaults:
  type: NotARealType
`)

	if _, err := config.Load(path); err == nil {
		t.Fatal("Load: want error for invalid BucketDefaults.Type, got nil")
	}
}

func TestLoadRequiresFilesystemDirectoriesWhenSelected(t *testing.T) {
	path := writeTempConfig(t, `
storageType: Filesystem
`)

	if _, err := config.Load(path); err == nil {
		t.Fatal("Load: want error when Filesystem storage is missing its directories, got nil")
	}
}

func TestLoadRequiresUsersWhenAuthenticationEnabled(t *testing.T) {
	path := writeTempConfig(t, `
authentication:
  enabled: true
`)

	if _, err := config.Load(path); err == nil {
		t.Fatal("Load: want error when Authentication.Enabled is true with no Users, got nil")
	}
}
