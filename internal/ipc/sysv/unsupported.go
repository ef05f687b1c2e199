//go:build !(linux && (amd64 || arm64))

package sysv

import "github.com/GriffinCanCode/MonteIPC/internal/ipc"

// Transport is a placeholder that fails every call on this platform.
type Transport struct{}

// New returns a transport that reports ErrUnsupported.
func New(Options) *Transport { return &Transport{} }

func (t *Transport) Name() string { return "sysv" }

func (t *Transport) Create() (*ipc.Set, error) { return nil, ErrUnsupported }

func (t *Transport) Attach() (*ipc.Set, error) { return nil, ErrUnsupported }

func (t *Transport) Remove() error { return nil }
