// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry

const (
	AttrServiceName    = "service.name"
	AttrServiceVersion = "service.version"

	AttrAgentName    = "agent.name"
	AttrAgentType    = "agent.type"
	AttrSessionID    = "session.id"
	AttrTaskID       = "task.id"
	AttrEventID      = "orin.event_id"
	AttrUserQuery    = "agent.user_query"

	AttrLLMModel        = "llm.model"
	AttrLLMMaxTokens    = "llm.max_tokens"
	AttrLLMTemperature  = "llm.temperature"
	AttrLLMTopP         = "llm.top_p"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrLLMFinishReason = "llm.finish_reason"

	AttrToolName = "tool.name"
	AttrToolType = "tool.type"

	AttrMemoryIndexType = "memory.index_type"
	AttrMemoryTopK      = "memory.top_k"

	AttrErrorType = "error.type"

	AttrHTTPMethod       = "http.method"
	AttrHTTPPath         = "http.path"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPResponseSize = "http.response_size"

	SpanAgentRun      = "agent.run"
	SpanLLMCall       = "agent.llm_call"
	SpanToolExecution = "agent.tool_execution"
	SpanMemorySearch  = "agent.memory_search"
	SpanHTTPRequest   = "http.request"

	DefaultServiceName  = "orin"
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultSamplingRate = 1.0
	DefaultMetricsPath  = "/metrics"
)
