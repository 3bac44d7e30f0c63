package contract

import (
	"context"

	"github.com/huangsam/reposcan/schema"
	"github.com/stretchr/testify/mock"
)

// MockSourceControlClient is a mock implementation of SourceControlClient for testing.
type MockSourceControlClient struct {
	mock.Mock
}

var _ SourceControlClient = &MockSourceControlClient{} // Compile-time check

// ListTree implements the SourceControlClient interface.
func (m *MockSourceControlClient) ListTree(ctx context.Context, desc schema.RepositoryDescriptor) (RemoteTree, error) {
	ret := m.Called(ctx, desc)
	tree, _ := ret.Get(0).(RemoteTree)
	return tree, ret.Error(1)
}

// Fetch implements the SourceControlClient interface.
func (m *MockSourceControlClient) Fetch(ctx context.Context, desc schema.RepositoryDescriptor, dest string, opts FetchOptions) (Checkout, error) {
	ret := m.Called(ctx, desc, dest, opts)
	var checkout Checkout
	if fn, ok := ret.Get(0).(func(context.Context, schema.RepositoryDescriptor, string, FetchOptions) Checkout); ok {
		checkout = fn(ctx, desc, dest, opts)
	} else {
		checkout, _ = ret.Get(0).(Checkout)
	}
	return checkout, ret.Error(1)
}

// MockSizeEstimator is a mock implementation of SizeEstimator for testing.
type MockSizeEstimator struct {
	mock.Mock
}

var _ SizeEstimator = &MockSizeEstimator{} // Compile-time check

// Estimate implements the SizeEstimator interface.
func (m *MockSizeEstimator) Estimate(ctx context.Context, desc schema.RepositoryDescriptor) (schema.SizeEstimate, error) {
	ret := m.Called(ctx, desc)
	est, _ := ret.Get(0).(schema.SizeEstimate)
	return est, ret.Error(1)
}

// MockContentAnalyzer is a mock implementation of ContentAnalyzer for testing.
type MockContentAnalyzer struct {
	mock.Mock
}

var _ ContentAnalyzer = &MockContentAnalyzer{} // Compile-time check

// Analyze implements the ContentAnalyzer interface.
func (m *MockContentAnalyzer) Analyze(ctx context.Context, content []byte, path string) (schema.AnalyzerOutput, error) {
	ret := m.Called(ctx, content, path)
	out, _ := ret.Get(0).(schema.AnalyzerOutput)
	return out, ret.Error(1)
}

// MockMemorySampler is a mock implementation of MemorySampler for testing.
type MockMemorySampler struct {
	mock.Mock
}

var _ MemorySampler = &MockMemorySampler{} // Compile-time check

// Sample implements the MemorySampler interface.
func (m *MockMemorySampler) Sample() (uint64, error) {
	ret := m.Called()
	v, _ := ret.Get(0).(uint64)
	return v, ret.Error(1)
}

// Available implements the MemorySampler interface.
func (m *MockMemorySampler) Available() (uint64, error) {
	ret := m.Called()
	v, _ := ret.Get(0).(uint64)
	return v, ret.Error(1)
}
