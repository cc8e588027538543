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

//go:build azureblob && integration

package azure_test

import (
	"context"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/jeremyhahn/go-mantavfs/pkg/azure"
	"github.com/jeremyhahn/go-mantavfs/pkg/common/clienttest"
)

const (
	account = "devstoreaccount1"
	key     = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

// endpoint is the Azurite account URL, AZURE_ENDPOINT or the compose
// service name.
func endpoint() string {
	if ep := os.Getenv("AZURE_ENDPOINT"); ep != "" {
		return ep + "/" + account
	}
	return "http://azurite:10000/" + account
}

func createContainer(t *testing.T, container string) {
	t.Helper()
	cred, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(endpoint() + "/" + container)
	cu := azblob.NewContainerURL(*u, azblob.NewPipeline(cred, azblob.PipelineOptions{}))
	for i := 0; i < 10; i++ {
		if _, err = cu.Create(context.Background(), azblob.Metadata{}, azblob.PublicAccessNone); err == nil {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func TestAzure_Conformance(t *testing.T) {
	container := "mantavfs-conformance"
	createContainer(t, container)

	client := azure.New()
	err := client.Configure(map[string]string{
		"accountName":   account,
		"accountKey":    key,
		"containerName": container,
		"endpoint":      endpoint(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = client.Close() }()

	suite := &clienttest.Suite{Client: client}
	suite.Run(t)
}
