// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"time"

	"github.com/holomush/pluginhost/internal/plugin"
)

type pluginStatus struct {
	ID      string    `json:"id"`
	Version string    `json:"version"`
	Type    string    `json:"type"`
	State   string    `json:"state"`
	Since   time.Time `json:"since"`
	Error   string    `json:"error,omitempty"`
}

type failureStatus struct {
	Path  string    `json:"path"`
	ID    string    `json:"id,omitempty"`
	Error string    `json:"error"`
	At    time.Time `json:"at"`
}

type hostStatus struct {
	Version  string          `json:"version"`
	Plugins  []pluginStatus  `json:"plugins"`
	Failures []failureStatus `json:"failures"`
}

// statusOf snapshots the plugin table for the /status endpoint.
func statusOf(mgr *plugin.Manager) hostStatus {
	st := hostStatus{
		Version:  version,
		Plugins:  []pluginStatus{},
		Failures: []failureStatus{},
	}
	if mgr == nil {
		return st
	}
	for _, inst := range mgr.Plugins() {
		desc := inst.Descriptor()
		ps := pluginStatus{
			ID:      inst.ID(),
			Version: desc.Version,
			Type:    string(desc.Type),
			State:   inst.State().String(),
			Since:   inst.Since(),
		}
		if err := inst.Err(); err != nil {
			ps.Error = err.Error()
		}
		st.Plugins = append(st.Plugins, ps)
	}
	for _, f := range mgr.Failures() {
		fs := failureStatus{Path: f.Path, ID: f.ID, At: f.At}
		if f.Err != nil {
			fs.Error = f.Err.Error()
		}
		st.Failures = append(st.Failures, fs)
	}
	return st
}
