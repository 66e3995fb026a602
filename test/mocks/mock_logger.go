package mocks

import (
	"fmt"

	"github.com/stretchr/testify/mock"
)

// MockLogger 是一个 mock logger 实现
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, v ...any) {
	fmt.Printf("[MOCK DEBUG] %s\n", fmt.Sprintf(format, v...))
}

func (m *MockLogger) Info(format string, v ...any) {
	fmt.Printf("[MOCK INFO] %s\n", fmt.Sprintf(format, v...))
}

func (m *MockLogger) Warn(format string, v ...any) {
	fmt.Printf("[MOCK WARN] %s\n", fmt.Sprintf(format, v...))
}

func (m *MockLogger) Error(format string, v ...any) {
	fmt.Printf("[MOCK ERROR] %s\n", fmt.Sprintf(format, v...))
}

func (m *MockLogger) Fatal(format string, v ...any) {
	fmt.Printf("[MOCK FATAL] %s\n", fmt.Sprintf(format, v...))
}
