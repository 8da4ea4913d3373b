package storage

import (
	"context"

	"github.com/ruteri/indexer-metadata-gateway/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockStore mocks the MetadataStore interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Begin(ctx context.Context) (interfaces.MetadataTx, error) {
	args := m.Called(ctx)
	tx, _ := args.Get(0).(interfaces.MetadataTx)
	return tx, args.Error(1)
}

func (m *MockStore) List(ctx context.Context, table interfaces.Table, offset, limit int) ([]interfaces.MetadataRecord, error) {
	args := m.Called(ctx, table, offset, limit)
	records, _ := args.Get(0).([]interfaces.MetadataRecord)
	return records, args.Error(1)
}

func (m *MockStore) Count(ctx context.Context, table interfaces.Table) (int, error) {
	args := m.Called(ctx, table)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockStore) Name() string {
	return "mock"
}

func (m *MockStore) LocationURI() string {
	return "mock://"
}

func (m *MockStore) Close() error {
	return nil
}

// MockTx mocks the MetadataTx interface
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Get(ctx context.Context, table interfaces.Table, key string) (interfaces.Fields, bool, error) {
	args := m.Called(ctx, table, key)
	fields, _ := args.Get(0).(interfaces.Fields)
	return fields, args.Bool(1), args.Error(2)
}

func (m *MockTx) Put(ctx context.Context, table interfaces.Table, key string, fields interfaces.Fields) error {
	args := m.Called(ctx, table, key, fields)
	return args.Error(0)
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
