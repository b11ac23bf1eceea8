// Package mocks provides shared fakes of the pipeline's collaborators for testing.
//
// # Usage
//
//	import "assistant/internal/mocks"
//
//	func TestSomething(t *testing.T) {
//	    client := mocks.NewMockLLMClientWithText(`{"type":"general","response":"hi"}`)
//	    store := mocks.NewMemoryUserStore()
//	    launcher := mocks.NewLauncher()
//	    // wire them into the component under test...
//	}
//
// # Available Mocks
//
//   - MockLLMClient: upstream.llm.Client with scripted responses and errors
//   - MemoryUserStore: persistence.UserStore kept in memory
//   - Launcher: exec.ProcessLauncher that records commands instead of running them
//   - ImageClient: imagegen.Client with a scripted image or error
//   - Clock and SleepRecorder: deterministic time for breakers, quotas, and retries
package mocks
