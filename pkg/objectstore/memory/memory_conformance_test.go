package memory_test

import (
	"testing"

	"github.com/marmos91/ostreesync/pkg/objectstore"
	"github.com/marmos91/ostreesync/pkg/objectstore/memory"
	"github.com/marmos91/ostreesync/pkg/objectstore/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) objectstore.ObjectStore {
		return memory.New()
	})
}
