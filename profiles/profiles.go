// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package profiles persists the reflow profile table.
//
// The table and the active selection are stored under separate keys: the
// profile list is written with its selection stripped, so editing profiles
// and switching the active one dirty independent preferences and a
// selection change never rewrites the whole table. On read the selection
// is re-validated against the list.
package profiles // import "github.com/solderworks/hotplate/profiles"

import (
	"fmt"
	"sync"

	"github.com/golang/protobuf/proto"
	"gopkg.in/yaml.v2"

	"github.com/solderworks/hotplate/pb"
	"github.com/solderworks/hotplate/pref"
)

const (
	ns           = "profiles"
	keyData      = "data"
	keySelection = "selection"
)

// Store is the persistent profile table.
type Store struct {
	mu        sync.Mutex
	list      *pref.Preference[[]byte]
	selection *pref.Preference[int32]
}

// NewStore returns a store over kv.
func NewStore(kv pref.KV) *Store {
	return &Store{
		list:      pref.NewBytes(kv, ns, keyData, nil),
		selection: pref.NewBinary[int32](kv, ns, keySelection, -1),
	}
}

// Register adds the store's preferences to the periodic writer.
func (s *Store) Register(w *pref.Writer) {
	w.Add(s.list)
	w.Add(s.selection)
}

// Get returns the profile table with a validated selection.
func (s *Store) Get() *pb.ProfilesData {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := &pb.ProfilesData{}
	if raw := s.list.Get(); len(raw) != 0 {
		// A blob that fails to decode reads as an empty table.
		_ = proto.Unmarshal(raw, data)
	}
	data.SelectedId = s.selection.Get()
	adjustSelection(data)
	return data
}

// Set validates and stores a new profile table.
func (s *Store) Set(data *pb.ProfilesData) error {
	if len(data.Items) > pb.MaxProfiles {
		return fmt.Errorf("profiles: %d profiles exceed the table bound %d", len(data.Items), pb.MaxProfiles)
	}
	for _, p := range data.Items {
		if len(p.Name) > pb.MaxProfileNameLen {
			return fmt.Errorf("profiles: name %q too long", p.Name)
		}
		if len(p.Segments) > pb.MaxProfileSegments {
			return fmt.Errorf("profiles: profile %d has %d segments, bound is %d", p.Id, len(p.Segments), pb.MaxProfileSegments)
		}
	}

	stripped := proto.Clone(data).(*pb.ProfilesData)
	stripped.SelectedId = -1
	raw, err := proto.Marshal(stripped)
	if err != nil {
		return fmt.Errorf("profiles: %v", err)
	}

	s.mu.Lock()
	s.selection.Set(data.SelectedId)
	s.list.Set(raw)
	s.mu.Unlock()
	return nil
}

// SelectedProfile returns the active profile, if any.
func (s *Store) SelectedProfile() (*pb.Profile, bool) {
	data := s.Get()
	for _, p := range data.Items {
		if p.Id == data.SelectedId {
			return p, true
		}
	}
	return nil, false
}

// adjustSelection repairs a selection that no longer matches the table: an
// empty table selects -1, a dangling id falls back to the first profile.
func adjustSelection(data *pb.ProfilesData) {
	if len(data.Items) == 0 {
		data.SelectedId = -1
		return
	}
	for _, p := range data.Items {
		if p.Id == data.SelectedId {
			return
		}
	}
	data.SelectedId = data.Items[0].Id
}

// YAML bootstrap format for host tools:
//
//	selected: 1
//	profiles:
//	  - id: 1
//	    name: leaded
//	    segments:
//	      - {target: 150, duration: 90}
type yamlSegment struct {
	Target   int32 `yaml:"target"`
	Duration int32 `yaml:"duration"`
}

type yamlProfile struct {
	ID       int32         `yaml:"id"`
	Name     string        `yaml:"name"`
	Segments []yamlSegment `yaml:"segments"`
}

type yamlFile struct {
	Selected int32         `yaml:"selected"`
	Profiles []yamlProfile `yaml:"profiles"`
}

// ParseYAML converts a YAML profile table into the wire form.
func ParseYAML(raw []byte) (*pb.ProfilesData, error) {
	var file yamlFile
	if err := yaml.UnmarshalStrict(raw, &file); err != nil {
		return nil, fmt.Errorf("profiles: %v", err)
	}
	data := &pb.ProfilesData{SelectedId: file.Selected}
	for _, p := range file.Profiles {
		item := &pb.Profile{Id: p.ID, Name: p.Name}
		for _, seg := range p.Segments {
			item.Segments = append(item.Segments, &pb.Segment{Target: seg.Target, Duration: seg.Duration})
		}
		data.Items = append(data.Items, item)
	}
	adjustSelection(data)
	return data, nil
}
