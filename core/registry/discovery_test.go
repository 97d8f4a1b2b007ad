package registry_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/artpar/crossbridge/core/plugin"
	"github.com/artpar/crossbridge/core/registry"
)

func TestFromMetadata(t *testing.T) {
	meta := map[string]string{
		"crossbridge.plugin.v1.Billing": "billing.v1",
		"crossbridge.plugin.v1.Ads":     " ads.v1 ",
		"crossbridge.theme":             "dark",
		"other.plugin.v1.Ignored":       "x",
		"crossbridge.plugin.v1.":        "empty.name",
	}

	got := registry.FromMetadata(meta)
	want := []registry.Entry{
		{Name: "", Loader: "empty.name"},
		{Name: "Ads", Loader: "ads.v1"},
		{Name: "Billing", Loader: "billing.v1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FromMetadata() = %v, want %v", got, want)
	}

	if got := registry.FromMetadata(nil); len(got) != 0 {
		t.Errorf("FromMetadata(nil) = %v, want empty", got)
	}
}

func TestCatalog(t *testing.T) {
	c := registry.NewCatalog()
	l := func(plugin.Env) (plugin.Module, error) { return nil, nil }

	if err := c.Add("b", l); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := c.Add("a", l); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	tests := []struct {
		name   string
		ref    string
		loader plugin.Loader
	}{
		{"duplicate", "a", l},
		{"empty ref", "", l},
		{"nil loader", "c", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Add(tt.ref, tt.loader); err == nil {
				t.Error("Add() should fail")
			}
		})
	}

	if err := c.Add("a", l); !errors.Is(err, registry.ErrLoaderBound) {
		t.Errorf("Add(a) again = %v, want ErrLoaderBound", err)
	}

	if _, ok := c.Resolve("a"); !ok {
		t.Error("Resolve(a) should succeed")
	}
	if _, ok := c.Resolve("missing"); ok {
		t.Error("Resolve(missing) should fail")
	}
	if got := c.Refs(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Refs() = %v", got)
	}
}

func TestCatalogMustAddPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustAdd() should panic on an empty reference")
		}
	}()
	registry.NewCatalog().MustAdd("", func(plugin.Env) (plugin.Module, error) { return nil, nil })
}
