// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-mantavfs.
//
// go-mantavfs is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

//go:build gcpstorage && integration

package gcs_test

import (
	"context"
	"net"
	"net/url"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/storage"

	"github.com/jeremyhahn/go-mantavfs/pkg/common/clienttest"
	"github.com/jeremyhahn/go-mantavfs/pkg/gcs"
)

// createBucket creates bucket on the emulator named by
// STORAGE_EMULATOR_HOST, skipping when it is unset or unreachable.
func createBucket(t *testing.T, bucket string) {
	t.Helper()
	host := os.Getenv("STORAGE_EMULATOR_HOST")
	if host == "" {
		t.Skip("STORAGE_EMULATOR_HOST not set")
	}
	u, _ := url.Parse(host)
	conn, err := net.DialTimeout("tcp", u.Host, 2*time.Second)
	if err != nil {
		t.Skipf("fake-gcs not reachable at %s: %v", u.Host, err)
	}
	_ = conn.Close()

	ctx := context.Background()
	client, err := storage.NewClient(ctx)
	if err != nil {
		t.Skip("gcs client init failed in emulator env")
	}
	defer func() { _ = client.Close() }()
	_ = client.Bucket(bucket).Create(ctx, "test-proj", nil)
}

func TestGCS_Conformance(t *testing.T) {
	bucket := "mantavfs-conformance"
	createBucket(t, bucket)

	client := gcs.New()
	if err := client.Configure(map[string]string{"bucket": bucket}); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = client.Close() }()

	suite := &clienttest.Suite{Client: client}
	suite.Run(t)
}
