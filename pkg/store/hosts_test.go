package store

import (
	"strings"
	"testing"

	"github.com/veridian/hvs/pkg/hostconn"
	"github.com/veridian/hvs/pkg/manifest"
)

func TestHostCRUD(t *testing.T) {
	store := newTestStore(t)

	t.Run("AddHost_GeneratesID", func(t *testing.T) {
		h := &Host{
			Name:             "node-01",
			ConnectionString: "https://node-01.lab:1443",
		}
		if err := store.AddHost(h); err != nil {
			t.Fatalf("AddHost failed: %v", err)
		}
		if !strings.HasPrefix(h.ID, "host_") {
			t.Errorf("ID should start with 'host_', got %q", h.ID)
		}
		if h.CreatedAt.IsZero() {
			t.Error("CreatedAt should be set")
		}
	})

	t.Run("AddHost_DuplicateName", func(t *testing.T) {
		h := &Host{
			Name:             "node-01",
			ConnectionString: "https://other.lab:1443",
		}
		if err := store.AddHost(h); err == nil {
			t.Error("AddHost should fail for duplicate name")
		}
	})

	t.Run("TLSPolicy_RoundTrip", func(t *testing.T) {
		h := &Host{
			Name:             "node-02",
			ConnectionString: "https://node-02.lab:1443",
			TLSPolicy: &hostconn.TLSPolicy{
				CACertPEM: "-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----",
			},
		}
		if err := store.AddHost(h); err != nil {
			t.Fatalf("AddHost failed: %v", err)
		}

		got, err := store.GetHost(h.ID)
		if err != nil {
			t.Fatalf("GetHost failed: %v", err)
		}
		if got.TLSPolicy == nil || got.TLSPolicy.CACertPEM != h.TLSPolicy.CACertPEM {
			t.Errorf("TLS policy did not round-trip: %+v", got.TLSPolicy)
		}
	})

	t.Run("GetHostByName", func(t *testing.T) {
		got, err := store.GetHostByName("node-01")
		if err != nil {
			t.Fatalf("GetHostByName failed: %v", err)
		}
		if got.ConnectionString != "https://node-01.lab:1443" {
			t.Errorf("unexpected host: %+v", got)
		}
		if got.TLSPolicy != nil {
			t.Errorf("host without TLS policy should load nil, got %+v", got.TLSPolicy)
		}
	})

	t.Run("HostExists", func(t *testing.T) {
		h, _ := store.GetHostByName("node-01")
		exists, err := store.HostExists(h.ID)
		if err != nil {
			t.Fatalf("HostExists failed: %v", err)
		}
		if !exists {
			t.Error("HostExists should be true for a registered host")
		}

		exists, err = store.HostExists("host_deadbeef")
		if err != nil {
			t.Fatalf("HostExists failed: %v", err)
		}
		if exists {
			t.Error("HostExists should be false for an unknown id")
		}
	})

	t.Run("UpdateHostHardwareUUID", func(t *testing.T) {
		h, _ := store.GetHostByName("node-01")
		hwUUID := "4c4c4544-0042-3510-8057-b2c04f303933"
		if err := store.UpdateHostHardwareUUID(h.ID, hwUUID); err != nil {
			t.Fatalf("UpdateHostHardwareUUID failed: %v", err)
		}

		got, err := store.GetHost(h.ID)
		if err != nil {
			t.Fatalf("GetHost failed: %v", err)
		}
		if got.HardwareUUID != hwUUID {
			t.Errorf("hardware UUID not persisted: %q", got.HardwareUUID)
		}
	})

	t.Run("ListHosts", func(t *testing.T) {
		hosts, err := store.ListHosts()
		if err != nil {
			t.Fatalf("ListHosts failed: %v", err)
		}
		if len(hosts) != 2 {
			t.Fatalf("expected 2 hosts, got %d", len(hosts))
		}
		if hosts[0].Name != "node-01" || hosts[1].Name != "node-02" {
			t.Errorf("hosts should be ordered by name: %s, %s", hosts[0].Name, hosts[1].Name)
		}
	})

	t.Run("DeleteHost", func(t *testing.T) {
		h, _ := store.GetHostByName("node-02")
		if err := store.DeleteHost(h.ID); err != nil {
			t.Fatalf("DeleteHost failed: %v", err)
		}
		if err := store.DeleteHost(h.ID); err == nil {
			t.Error("DeleteHost should fail for missing host")
		}
	})
}

func TestHostGroupMembership(t *testing.T) {
	store := newTestStore(t)

	g, err := store.CreateGroup("automatic", nil)
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	h := &Host{Name: "node-01", ConnectionString: "https://node-01.lab:1443"}
	if err := store.AddHost(h); err != nil {
		t.Fatalf("AddHost failed: %v", err)
	}

	if err := store.AddHostToGroup(g.ID, h.ID); err != nil {
		t.Fatalf("AddHostToGroup failed: %v", err)
	}
	// Idempotent.
	if err := store.AddHostToGroup(g.ID, h.ID); err != nil {
		t.Fatalf("repeat AddHostToGroup failed: %v", err)
	}

	in, err := store.HostInGroup(g.ID, h.ID)
	if err != nil {
		t.Fatalf("HostInGroup failed: %v", err)
	}
	if !in {
		t.Error("host should be in the group")
	}

	groups, err := store.HostGroups(h.ID)
	if err != nil {
		t.Fatalf("HostGroups failed: %v", err)
	}
	if len(groups) != 1 || groups[0].ID != g.ID {
		t.Errorf("expected exactly the automatic group, got %v", groups)
	}
}

func TestHostStatusHistory(t *testing.T) {
	store := newTestStore(t)

	h := &Host{Name: "node-01", ConnectionString: "https://node-01.lab:1443"}
	if err := store.AddHost(h); err != nil {
		t.Fatalf("AddHost failed: %v", err)
	}

	t.Run("LatestHostStatus_Empty", func(t *testing.T) {
		st, err := store.LatestHostStatus(h.ID)
		if err != nil {
			t.Fatalf("LatestHostStatus failed: %v", err)
		}
		if st != nil {
			t.Errorf("expected no status, got %+v", st)
		}
	})

	t.Run("AppendAndLatest", func(t *testing.T) {
		if err := store.AppendHostStatus(h.ID, hostconn.StateConnectionFailure, nil); err != nil {
			t.Fatalf("AppendHostStatus failed: %v", err)
		}

		m := &manifest.Manifest{
			HostInfo: manifest.HostInfo{
				HostName:     "node-01",
				HardwareUUID: "4c4c4544-0042-3510-8057-b2c04f303933",
				BIOSVersion:  "1.4",
			},
		}
		if err := store.AppendHostStatus(h.ID, hostconn.StateConnected, m); err != nil {
			t.Fatalf("AppendHostStatus failed: %v", err)
		}

		st, err := store.LatestHostStatus(h.ID)
		if err != nil {
			t.Fatalf("LatestHostStatus failed: %v", err)
		}
		if st == nil || st.State != hostconn.StateConnected {
			t.Fatalf("latest status should be CONNECTED, got %+v", st)
		}
		if st.Manifest == nil || st.Manifest.HostInfo.BIOSVersion != "1.4" {
			t.Errorf("manifest snapshot did not round-trip: %+v", st.Manifest)
		}
	})

	t.Run("History_NewestFirst", func(t *testing.T) {
		history, err := store.HostStatusHistory(h.ID, 0)
		if err != nil {
			t.Fatalf("HostStatusHistory failed: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(history))
		}
		if history[0].State != hostconn.StateConnected {
			t.Errorf("newest row should be CONNECTED, got %s", history[0].State)
		}
		if history[1].State != hostconn.StateConnectionFailure {
			t.Errorf("oldest row should be CONNECTION_FAILURE, got %s", history[1].State)
		}

		capped, err := store.HostStatusHistory(h.ID, 1)
		if err != nil {
			t.Fatalf("HostStatusHistory failed: %v", err)
		}
		if len(capped) != 1 || capped[0].State != hostconn.StateConnected {
			t.Errorf("limit should keep the newest row, got %v", capped)
		}
	})
}
