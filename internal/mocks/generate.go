// Package mocks provides generated mock implementations for testing.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the port interfaces. The mocks are generated using go:generate directives
// and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	audit := mocks.NewMockAuditRecorder(ctrl)
//	audit.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)
//
// Hand-written doubles for the identity provider and bookkeeping stores live
// in the session subpackage; they carry behavior (listener fan-out, call
// counting) that codegen does not express well.
package mocks

// Generate mock for AuditRecorder interface from internal/ports.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=audit_recorder_mock.go github.com/guestwave/console-auth/internal/ports AuditRecorder

// Generate mock for ActivityStore interface from internal/ports.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=activity_store_mock.go github.com/guestwave/console-auth/internal/ports ActivityStore
