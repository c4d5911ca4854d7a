// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package main implements an echo bot as a binary plugin.
//
// Build it next to its descriptor:
//
//	go build -o plugins/echo/echo-plugin ./plugins/echo
package main

import (
	"context"
	"strings"

	"github.com/holomush/pluginhost/pkg/pluginsdk"
)

type echo struct{}

func (echo) Commands() []pluginsdk.Command {
	return []pluginsdk.Command{
		{
			Name:        "echo",
			Description: "Repeat text back to you",
			Params:      []pluginsdk.Param{{Name: "text", Greedy: true}},
			Handler: func(_ context.Context, call *pluginsdk.Call) (any, error) {
				call.Reply(call.Args.String(0))
				return nil, nil
			},
		},
		{
			Name:        "shout",
			Description: "Repeat text back in capitals, several times",
			Aliases:     []string{"yell"},
			Params: []pluginsdk.Param{
				{Name: "times", Type: "int"},
				{Name: "text", Greedy: true},
			},
			Handler: func(_ context.Context, call *pluginsdk.Call) (any, error) {
				n := call.Args.Int(0)
				if n < 1 || n > 5 {
					call.Reply("times must be between 1 and 5")
					return false, nil
				}
				for range n {
					call.Reply(strings.ToUpper(call.Args.String(1)))
				}
				return nil, nil
			},
		},
	}
}

func main() {
	pluginsdk.Serve(&pluginsdk.ServeConfig{Plugin: echo{}})
}
