package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/clean-dependency-project/cdpanel/internal/reconcile"
)

func TestEnvelope_Validate(t *testing.T) {
	tests := []struct {
		name    string
		env     Envelope
		wantErr error
	}{
		{"inbound kind", Envelope{Kind: KindUpdateBranchName}, nil},
		{"outbound kind", Envelope{Kind: KindSelectCatalog}, nil},
		{"empty kind", Envelope{}, ErrEmptyKind},
		{"unknown kind", Envelope{Kind: "bogus"}, ErrUnknownKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.env.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvelope_Normalize(t *testing.T) {
	env := Envelope{Kind: "  updateBranchName "}
	env.Normalize()
	if env.Kind != KindUpdateBranchName {
		t.Errorf("Normalize() kind = %q, want %q", env.Kind, KindUpdateBranchName)
	}
}

func TestUpdateCatalogDetails_AbsentVsEmptyVersions(t *testing.T) {
	// Metadata phase: versions absent.
	metadata := MustNew(KindUpdateCatalogDetails, 1, UpdateCatalogDetails{CatalogID: "cat-1"})
	var meta UpdateCatalogDetails
	if err := metadata.Unmarshal(&meta); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if meta.Versions != nil {
		t.Error("metadata phase must carry no versions field")
	}

	// Versions phase with zero versions: present-and-empty, not absent.
	empty := []reconcile.CatalogEntry{}
	versions := MustNew(KindUpdateCatalogDetails, 2, UpdateCatalogDetails{CatalogID: "cat-1", Versions: &empty})
	var full UpdateCatalogDetails
	if err := versions.Unmarshal(&full); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if full.Versions == nil {
		t.Fatal("versions phase lost the empty list; empty must stay distinct from absent")
	}
	if len(*full.Versions) != 0 {
		t.Errorf("expected empty version list, got %d entries", len(*full.Versions))
	}
}

func TestReaderWriter_RoundTripInOrder(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	first := MustNew(KindSelectCatalog, 7, SelectCatalog{CatalogID: "cat-1"})
	second := MustNew(KindGetBranchName, 0, nil)
	if err := w.Write(first); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := w.Write(second); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	r := NewReader(&buf)
	got, err := r.Read()
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if got.Kind != KindSelectCatalog || got.ID != 7 {
		t.Errorf("first message = %+v, want selectCatalog id=7", got)
	}
	var sel SelectCatalog
	if err := got.Unmarshal(&sel); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if sel.CatalogID != "cat-1" {
		t.Errorf("CatalogID = %q, want cat-1", sel.CatalogID)
	}

	got, err = r.Read()
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if got.Kind != KindGetBranchName {
		t.Errorf("second message kind = %q, want getBranchName", got.Kind)
	}

	if _, err := r.Read(); err != io.EOF {
		t.Errorf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestWriter_RejectsInvalid(t *testing.T) {
	w := NewWriter(&bytes.Buffer{})
	if err := w.Write(Envelope{Kind: "nope"}); err == nil {
		t.Error("expected error writing unknown kind")
	}
}

func TestCreatePreRelease_Tag(t *testing.T) {
	c := CreatePreRelease{Version: "1.2.3", Postfix: "ce"}
	if got := c.Tag(); got != "v1.2.3-ce" {
		t.Errorf("Tag() = %q, want v1.2.3-ce", got)
	}
}
