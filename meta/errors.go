// Package meta implements the authoritative cluster metadata store: proxies,
// clusters, slot ownership, replication topology, and in-flight migrations.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package meta

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a store-level failure so that transport layers (HTTP,
// coordinator RPC) can map it without string-matching the message.
type Kind int

const (
	_ Kind = iota
	InUse
	NotInUse
	NoAvailableResource
	ResourceNotBalance
	AlreadyExisted
	ClusterNotFound
	FreeNodeNotFound
	FreeNodeFound
	ProxyNotFound
	InvalidNodeNum
	NodeNumAlreadyEnough
	InvalidClusterName
	InvalidMigrationTask
	InvalidProxyAddress
	MigrationTaskNotFound
	MigrationRunning
	InvalidConfig
	SlotsAlreadyEven
	SyncError
	InvalidMetaVersion
	SmallEpoch
	MissingIndex
	ProxyResourceOutOfOrder
	OrderedProxyEnabled
	OneClusterAlreadyExisted
	ProxyNotSync
	NodeNumberChanging
)

var kindNames = map[Kind]string{
	InUse:                    "InUse",
	NotInUse:                 "NotInUse",
	NoAvailableResource:      "NoAvailableResource",
	ResourceNotBalance:       "ResourceNotBalance",
	AlreadyExisted:           "AlreadyExisted",
	ClusterNotFound:          "ClusterNotFound",
	FreeNodeNotFound:         "FreeNodeNotFound",
	FreeNodeFound:            "FreeNodeFound",
	ProxyNotFound:            "ProxyNotFound",
	InvalidNodeNum:           "InvalidNodeNum",
	NodeNumAlreadyEnough:     "NodeNumAlreadyEnough",
	InvalidClusterName:       "InvalidClusterName",
	InvalidMigrationTask:     "InvalidMigrationTask",
	InvalidProxyAddress:      "InvalidProxyAddress",
	MigrationTaskNotFound:    "MigrationTaskNotFound",
	MigrationRunning:         "MigrationRunning",
	InvalidConfig:            "InvalidConfig",
	SlotsAlreadyEven:         "SlotsAlreadyEven",
	SyncError:                "SyncError",
	InvalidMetaVersion:       "InvalidMetaVersion",
	SmallEpoch:               "SmallEpoch",
	MissingIndex:             "MissingIndex",
	ProxyResourceOutOfOrder:  "ProxyResourceOutOfOrder",
	OrderedProxyEnabled:      "OrderedProxyEnabled",
	OneClusterAlreadyExisted: "OneClusterAlreadyExisted",
	ProxyNotSync:             "ProxyNotSync",
	NodeNumberChanging:       "NodeNumberChanging",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Error is the store's single error type. Every MetaStore mutation that can
// fail returns one of these (or nil); transport layers type-assert on Kind
// rather than parsing messages.
type Error struct {
	Kind Kind
	msg  string
	// cause carries the pkg/errors stack trace of whatever triggered this,
	// if anything did.
	cause error
}

func (e *Error) Error() string {
	if e.msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.msg)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is(err, meta.NewErr(SomeKind)) work for sentinel comparison.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewErr builds a kind-tagged error with an optional formatted message.
func NewErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind to an underlying error while preserving its stack via
// pkg/errors, for failures that originate below the store (e.g. a corrupt
// persisted snapshot surfacing through restore).
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), cause: errors.WithStack(err)}
}

// AsError extracts a *Error from err, if any wraps one.
func AsError(err error) (*Error, bool) {
	var me *Error
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}
