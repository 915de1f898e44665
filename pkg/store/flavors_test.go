package store

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/veridian/hvs/pkg/flavor"
)

func TestFlavorCRUD(t *testing.T) {
	store := newTestStore(t)

	t.Run("AddFlavor_GeneratesID", func(t *testing.T) {
		f := testFlavor(t, store, flavor.CategoryPlatform, "platform-v1")
		if !strings.HasPrefix(f.ID, "fl_") {
			t.Errorf("ID should start with 'fl_', got %q", f.ID)
		}
		if f.CreatedAt.IsZero() {
			t.Error("CreatedAt should be set")
		}
	})

	t.Run("AddFlavor_NormalizesBIOS", func(t *testing.T) {
		f := &flavor.Flavor{
			Category: flavor.Category("BIOS"),
			Label:    "bios-legacy",
			Content:  json.RawMessage(`{}`),
		}
		if err := store.AddFlavor(f); err != nil {
			t.Fatalf("AddFlavor failed: %v", err)
		}

		got, err := store.GetFlavor(f.ID)
		if err != nil {
			t.Fatalf("GetFlavor failed: %v", err)
		}
		if got.Category != flavor.CategoryPlatform {
			t.Errorf("BIOS should be stored as PLATFORM, got %s", got.Category)
		}
	})

	t.Run("AddFlavor_RejectsUnknownCategory", func(t *testing.T) {
		f := &flavor.Flavor{
			Category: flavor.Category("FIRMWARE"),
			Label:    "bad",
			Content:  json.RawMessage(`{}`),
		}
		if err := store.AddFlavor(f); err == nil {
			t.Error("AddFlavor should reject unknown categories")
		}
	})

	t.Run("GetFlavor_RoundTrip", func(t *testing.T) {
		f := testFlavor(t, store, flavor.CategoryOS, "os-v2")

		got, err := store.GetFlavor(f.ID)
		if err != nil {
			t.Fatalf("GetFlavor failed: %v", err)
		}
		if got.Label != "os-v2" || got.Category != flavor.CategoryOS {
			t.Errorf("unexpected flavor: %+v", got)
		}
		if string(got.Content) != string(f.Content) {
			t.Errorf("content mismatch: %s", got.Content)
		}
	})

	t.Run("ListFlavors_ByCategory", func(t *testing.T) {
		flavors, err := store.ListFlavors(flavor.CategoryOS)
		if err != nil {
			t.Fatalf("ListFlavors failed: %v", err)
		}
		for _, f := range flavors {
			if f.Category != flavor.CategoryOS {
				t.Errorf("expected only OS flavors, got %s", f.Category)
			}
		}
	})

	t.Run("DeleteFlavor", func(t *testing.T) {
		f := testFlavor(t, store, flavor.CategoryPlatform, "doomed")
		if err := store.DeleteFlavor(f.ID); err != nil {
			t.Fatalf("DeleteFlavor failed: %v", err)
		}
		if _, err := store.GetFlavor(f.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetFlavor after delete = %v, want ErrNotFound", err)
		}
		if err := store.DeleteFlavor(f.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteFlavor for missing flavor = %v, want ErrNotFound", err)
		}
	})
}

func TestFlavorGroups(t *testing.T) {
	store := newTestStore(t)

	t.Run("CreateGroup_WellKnownPolicy", func(t *testing.T) {
		g, err := store.CreateGroup("automatic", nil)
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		if !strings.HasPrefix(g.ID, "fg_") {
			t.Errorf("ID should start with 'fg_', got %q", g.ID)
		}
		// Well-known names always get their canonical policy.
		if _, ok := g.Policy[flavor.CategoryPlatform]; !ok {
			t.Error("automatic group should carry the PLATFORM rule")
		}
	})

	t.Run("CreateGroup_HostUniqueHasNilPolicy", func(t *testing.T) {
		g, err := store.CreateGroup("host_unique", flavor.MatchPolicy{
			flavor.CategoryOS: {MatchType: flavor.MatchLatest, Required: flavor.Required},
		})
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		if g.Policy != nil {
			t.Errorf("host_unique policy should be nil, got %v", g.Policy)
		}

		got, err := store.GetGroupByName("host_unique")
		if err != nil {
			t.Fatalf("GetGroupByName failed: %v", err)
		}
		if got.Policy != nil {
			t.Errorf("persisted host_unique policy should be nil, got %v", got.Policy)
		}
	})

	t.Run("CreateGroup_CustomPolicy", func(t *testing.T) {
		policy := flavor.MatchPolicy{
			flavor.CategoryOS: {MatchType: flavor.MatchAnyOf, Required: flavor.Required},
		}
		g, err := store.CreateGroup("prod-fleet", policy)
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}

		got, err := store.GetGroup(g.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		rule, ok := got.Policy[flavor.CategoryOS]
		if !ok || rule.MatchType != flavor.MatchAnyOf {
			t.Errorf("policy did not round-trip: %v", got.Policy)
		}
	})

	t.Run("CreateGroup_DuplicateName", func(t *testing.T) {
		if _, err := store.CreateGroup("prod-fleet", nil); err == nil {
			t.Error("CreateGroup should fail for duplicate name")
		}
	})

	t.Run("EnsureGroup_Idempotent", func(t *testing.T) {
		g1, err := store.EnsureGroup("platform_software")
		if err != nil {
			t.Fatalf("EnsureGroup failed: %v", err)
		}
		g2, err := store.EnsureGroup("platform_software")
		if err != nil {
			t.Fatalf("EnsureGroup failed on second call: %v", err)
		}
		if g1.ID != g2.ID {
			t.Errorf("EnsureGroup should reuse the group: %s vs %s", g1.ID, g2.ID)
		}
	})
}

func TestGroupMembershipAndCatalog(t *testing.T) {
	store := newTestStore(t)

	g, err := store.CreateGroup("fleet", flavor.MatchPolicy{
		flavor.CategoryPlatform: {MatchType: flavor.MatchAnyOf, Required: flavor.Required},
		flavor.CategoryOS:       {MatchType: flavor.MatchLatest, Required: flavor.RequiredIfDefined},
	})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	p1 := testFlavor(t, store, flavor.CategoryPlatform, "platform-a")
	p2 := testFlavor(t, store, flavor.CategoryPlatform, "platform-b")
	osFlavor := testFlavor(t, store, flavor.CategoryOS, "os-a")
	for _, f := range []*flavor.Flavor{p1, p2, osFlavor} {
		if err := store.AddFlavorToGroup(g.ID, f.ID); err != nil {
			t.Fatalf("AddFlavorToGroup failed: %v", err)
		}
	}

	t.Run("AddFlavorToGroup_Idempotent", func(t *testing.T) {
		if err := store.AddFlavorToGroup(g.ID, p1.ID); err != nil {
			t.Fatalf("repeat AddFlavorToGroup failed: %v", err)
		}
	})

	t.Run("FlavorsInGroup_CatalogOrder", func(t *testing.T) {
		flavors, err := store.FlavorsInGroup(g.ID, flavor.CategoryPlatform)
		if err != nil {
			t.Fatalf("FlavorsInGroup failed: %v", err)
		}
		if len(flavors) != 2 {
			t.Fatalf("expected 2 PLATFORM flavors, got %d", len(flavors))
		}
		// Insertion order is the catalog order.
		if flavors[0].ID != p1.ID || flavors[1].ID != p2.ID {
			t.Errorf("unexpected order: %s, %s", flavors[0].ID, flavors[1].ID)
		}
	})

	t.Run("GroupHasCategory", func(t *testing.T) {
		has, err := store.GroupHasCategory(g.ID, flavor.CategoryOS)
		if err != nil {
			t.Fatalf("GroupHasCategory failed: %v", err)
		}
		if !has {
			t.Error("group should have OS flavors")
		}

		has, err = store.GroupHasCategory(g.ID, flavor.CategorySoftware)
		if err != nil {
			t.Fatalf("GroupHasCategory failed: %v", err)
		}
		if has {
			t.Error("group should not have SOFTWARE flavors")
		}
	})
}

func TestHostUniqueFlavors(t *testing.T) {
	store := newTestStore(t)

	hwUUID := "4c4c4544-0042-3510-8057-b2c04f303933"
	hu := &flavor.Flavor{
		Category:     flavor.CategoryHostUnique,
		Label:        "host-unique-1",
		HardwareUUID: hwUUID,
		Content:      json.RawMessage(`{"measurements":{"nv":"bb"}}`),
	}
	if err := store.AddFlavor(hu); err != nil {
		t.Fatalf("AddFlavor failed: %v", err)
	}
	testFlavor(t, store, flavor.CategoryPlatform, "shared-platform")

	t.Run("FoundByHardwareUUID", func(t *testing.T) {
		flavors, err := store.HostUniqueFlavors(hwUUID, flavor.CategoryHostUnique)
		if err != nil {
			t.Fatalf("HostUniqueFlavors failed: %v", err)
		}
		if len(flavors) != 1 || flavors[0].ID != hu.ID {
			t.Errorf("expected the host-unique flavor, got %v", flavors)
		}

		exists, err := store.HostUniqueExists(hwUUID, flavor.CategoryHostUnique)
		if err != nil {
			t.Fatalf("HostUniqueExists failed: %v", err)
		}
		if !exists {
			t.Error("HostUniqueExists should be true")
		}
	})

	t.Run("OtherHostSeesNothing", func(t *testing.T) {
		flavors, err := store.HostUniqueFlavors("00000000-0000-0000-0000-000000000000", flavor.CategoryHostUnique)
		if err != nil {
			t.Fatalf("HostUniqueFlavors failed: %v", err)
		}
		if len(flavors) != 0 {
			t.Errorf("expected no flavors for an unknown hardware UUID, got %d", len(flavors))
		}
	})

	t.Run("EmptyHardwareUUID", func(t *testing.T) {
		exists, err := store.HostUniqueExists("", flavor.CategoryHostUnique)
		if err != nil {
			t.Fatalf("HostUniqueExists failed: %v", err)
		}
		if exists {
			t.Error("an empty hardware UUID should never match")
		}
	})
}
