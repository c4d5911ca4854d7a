// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginv1

import (
	"encoding/json"

	"github.com/samber/oops"
	"google.golang.org/protobuf/types/known/structpb"
)

// Description is returned by Describe.
type Description struct {
	Commands []CommandSpec `json:"commands,omitempty"`
}

// CommandSpec declares one command served by the plugin.
type CommandSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Permission  string      `json:"permission,omitempty"`
	Aliases     []string    `json:"aliases,omitempty"`
	Params      []ParamSpec `json:"params,omitempty"`
}

// ParamSpec declares one command parameter. Type uses the script type
// names: string, int, number, bool, char, player.
type ParamSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
	Default     any    `json:"default,omitempty"`
	Greedy      bool   `json:"greedy,omitempty"`
	Description string `json:"description,omitempty"`
}

// InvokeRequest runs a command in the plugin. Player arguments travel as
// player names.
type InvokeRequest struct {
	Command string `json:"command"`
	Actor   string `json:"actor"`
	Args    []any  `json:"args,omitempty"`
}

// InvokeResponse carries the handler result and the messages the plugin
// sent to the invoking actor.
type InvokeResponse struct {
	Result   any      `json:"result,omitempty"`
	Messages []string `json:"messages,omitempty"`
}

// Encode converts a payload to a Struct.
func Encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, oops.In("pluginv1").Wrapf(err, "encode %T", v)
	}
	s := &structpb.Struct{}
	if err := s.UnmarshalJSON(data); err != nil {
		return nil, oops.In("pluginv1").Wrapf(err, "encode %T", v)
	}
	return s, nil
}

// Decode fills v from a Struct. Numbers decode as float64.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		return oops.In("pluginv1").Errorf("decode %T: empty message", v)
	}
	data, err := s.MarshalJSON()
	if err != nil {
		return oops.In("pluginv1").Wrapf(err, "decode %T", v)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return oops.In("pluginv1").Wrapf(err, "decode %T", v)
	}
	return nil
}
