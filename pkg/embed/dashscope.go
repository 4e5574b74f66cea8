package embed

// DashScope embedding models.
const (
	// ModelDashScopeV4 supports 100+ languages, dimensions 64–2048, default 1024.
	ModelDashScopeV4 = "text-embedding-v4"

	// ModelDashScopeV3 supports 50+ languages, dimensions 64–1024.
	ModelDashScopeV3 = "text-embedding-v3"
)

const (
	dashScopeBaseURL      = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	dashScopeMaxBatch     = 10 // v3/v4 max batch size
	dashScopeDefaultDim   = 1024
	dashScopeDefaultModel = ModelDashScopeV4
)

// DashScope implements [Embedder] using Aliyun DashScope's OpenAI-compatible
// embedding API. Its multilingual models handle the Chinese and Japanese
// aliases in the catalog well.
type DashScope struct {
	compat
}

var _ Embedder = (*DashScope)(nil)

// NewDashScope creates a DashScope embedder.
func NewDashScope(apiKey string, opts ...Option) *DashScope {
	opts = append([]Option{WithBaseURL(dashScopeBaseURL)}, opts...)
	cfg := newConfig(dashScopeDefaultModel, dashScopeDefaultDim, dashScopeMaxBatch, opts)
	return &DashScope{compat: newCompat(apiKey, cfg)}
}
