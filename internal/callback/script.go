package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// Script invokes an external program once per record. The request is JSON on
// stdin, the response JSON on stdout:
//
//	in:  {"mode":"predicate","key":"u1","value":"{...}"}
//	out: {"accept":true}                 (predicate mode)
//	out: {"value":"{...}"}               (transform mode)
//	out: {"error":"why it went wrong"}   (either mode)
//
// A non-zero exit or a deadline hit is a per-record failure; stderr is folded
// into the error message.
type Script struct {
	Command string
	Args    []string
}

type scriptRequest struct {
	Mode  string `json:"mode"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type scriptResponse struct {
	Accept *bool   `json:"accept"`
	Value  *string `json:"value"`
	Error  string  `json:"error"`
}

func (s Script) run(ctx context.Context, req scriptRequest) (*scriptResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("script: encode request: %w", err)
	}
	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("script: %w", ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("script: %s", msg)
		}
		return nil, fmt.Errorf("script: %w", err)
	}

	var resp scriptResponse
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		return nil, fmt.Errorf("script: bad response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("script: %s", resp.Error)
	}
	return &resp, nil
}

// ScriptPredicate runs the script in predicate mode.
type ScriptPredicate struct {
	Script
}

var _ Predicate = ScriptPredicate{}

func (p ScriptPredicate) Accepts(ctx context.Context, key, value string) (bool, error) {
	resp, err := p.run(ctx, scriptRequest{Mode: "predicate", Key: key, Value: value})
	if err != nil {
		return false, err
	}
	if resp.Accept == nil {
		return false, fmt.Errorf("script: predicate response missing accept field")
	}
	return *resp.Accept, nil
}

// ScriptTransform runs the script in transform mode.
type ScriptTransform struct {
	Script
}

var _ Transform = ScriptTransform{}

func (t ScriptTransform) Apply(ctx context.Context, key, value string) (string, error) {
	resp, err := t.run(ctx, scriptRequest{Mode: "transform", Key: key, Value: value})
	if err != nil {
		return "", err
	}
	if resp.Value == nil {
		return "", fmt.Errorf("script: transform response missing value field")
	}
	return *resp.Value, nil
}
