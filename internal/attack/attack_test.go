package attack

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fluxfuzzer/bypassfuzzer/internal/logging"
	"github.com/fluxfuzzer/bypassfuzzer/internal/payload"
	"github.com/fluxfuzzer/bypassfuzzer/internal/requester"
	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

type fakeSender struct {
	mu   sync.Mutex
	reqs []*types.Request
	fn   func(ctx context.Context, req *types.Request) (*types.Response, error)
}

func (f *fakeSender) Send(ctx context.Context, req *types.Request) (*types.Response, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, req)
	}
	return &types.Response{StatusCode: 403, Protocol: "HTTP/1.1", Body: []byte("denied")}, nil
}

func (f *fakeSender) sent() []*types.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Request(nil), f.reqs...)
}

type countingPacer struct{ n int }

func (p *countingPacer) Wait(ctx context.Context) error {
	p.n++
	return ctx.Err()
}

func newEnv(t *testing.T, rawURL string, sender Sender, src payload.Source) (*Env, *[]*types.AttackResult) {
	t.Helper()
	var results []*types.AttackResult
	if src == nil {
		src = payload.Defaults()
	}
	env := &Env{
		Sender:         sender,
		Baseline:       &types.Request{Method: "GET", URL: rawURL, Headers: []types.Header{{Name: "Host", Value: "x"}}},
		Emit:           func(r *types.AttackResult) { results = append(results, r) },
		ShouldContinue: func() bool { return true },
		Log:            logging.Nop(),
		Payloads:       src,
		Rand:           rand.New(rand.NewPCG(1, 2)),
	}
	return env, &results
}

func TestTagsOrder(t *testing.T) {
	want := []string{"header", "path", "verb", "param", "trailingdot", "trailingslash",
		"protocol", "case", "cookie", "extension", "contenttype", "encoding"}
	got := Tags()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, got)
	}
	got[0] = "mutated"
	if Tags()[0] != "header" {
		t.Error("Tags should return a copy")
	}
}

func TestIsKnown(t *testing.T) {
	tests := []struct {
		tag  string
		want bool
	}{
		{"header", true},
		{"HEADER", true},
		{" case ", true},
		{"smuggle", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsKnown(tt.tag); got != tt.want {
			t.Errorf("IsKnown(%q): expected %v, got %v", tt.tag, tt.want, got)
		}
	}
}

func TestBuildCanonicalOrder(t *testing.T) {
	strategies, err := Build([]string{"case", "Header", "verb", "header"}, Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	var tags []string
	for _, s := range strategies {
		tags = append(tags, s.Tag())
	}
	if strings.Join(tags, ",") != "header,verb,case" {
		t.Errorf("Expected header,verb,case, got %v", tags)
	}

	if _, err := Build([]string{"header", "nope"}, Options{}); err == nil {
		t.Error("Expected error for unknown tag")
	}
	if got := len(All(Options{})); got != len(Tags()) {
		t.Errorf("Expected %d strategies, got %d", len(Tags()), got)
	}
}

func TestHeaderExpandsIPs(t *testing.T) {
	src := payload.MapSource{
		payload.HeaderTemplates: {"X-Forwarded-For: {IP}"},
		payload.IPs:             {"127.0.0.1", "10.0.0.1", "localhost"},
	}
	sender := &fakeSender{}
	env, results := newEnv(t, "https://x/admin", sender, src)

	Header{}.Execute(context.Background(), env)

	if len(*results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(*results))
	}
	seen := map[string]bool{}
	for i, r := range *results {
		if r.AttackType != "Header" {
			t.Errorf("Expected attack type Header, got %s", r.AttackType)
		}
		if !strings.HasPrefix(r.Payload, "X-Forwarded-For: ") {
			t.Errorf("Unexpected payload %q", r.Payload)
		}
		seen[r.Payload] = true
		if v, _ := sender.sent()[i].HeaderValue("X-Forwarded-For"); "X-Forwarded-For: "+v != r.Payload {
			t.Errorf("Header %q does not match payload %q", v, r.Payload)
		}
	}
	if len(seen) != 3 {
		t.Errorf("Expected 3 distinct payloads, got %d", len(seen))
	}
	if env.Baseline.Target() != "/admin" || len(env.Baseline.Headers) != 1 {
		t.Error("Baseline was modified")
	}
}

func TestHeaderPathSwap(t *testing.T) {
	src := payload.MapSource{
		payload.HeaderTemplates: {"X-Original-URL: {PATH_SWAP}"},
		payload.IPs:             {"127.0.0.1"},
	}
	sender := &fakeSender{}
	env, results := newEnv(t, "https://x/admin/panel?a=1", sender, src)

	Header{}.Execute(context.Background(), env)

	if len(*results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(*results))
	}
	req := sender.sent()[0]
	if req.URL != "https://x/" {
		t.Errorf("Expected URL https://x/, got %s", req.URL)
	}
	if v, _ := req.HeaderValue("X-Original-URL"); v != "/admin/panel" {
		t.Errorf("Expected header value /admin/panel, got %s", v)
	}
	if (*results)[0].Payload != "X-Original-URL: /admin/panel (path→/)" {
		t.Errorf("Unexpected payload %q", (*results)[0].Payload)
	}
}

func TestRootPathSkips(t *testing.T) {
	for _, s := range []Strategy{Path{}, Extension{}, TrailingSlash{}, Encoding{}} {
		sender := &fakeSender{}
		env, results := newEnv(t, "https://x/", sender, nil)
		s.Execute(context.Background(), env)
		if len(sender.sent()) != 0 || len(*results) != 0 {
			t.Errorf("%s: expected no requests on root, got %d", s.Tag(), len(sender.sent()))
		}
	}
}

func TestPathPermutations(t *testing.T) {
	src := payload.MapSource{payload.URLs: {"..;/"}}
	sender := &fakeSender{}
	env, results := newEnv(t, "https://x/admin", sender, src)

	Path{}.Execute(context.Background(), env)

	if len(*results) == 0 {
		t.Fatal("Expected path results")
	}
	found := false
	for _, r := range *results {
		if !strings.HasPrefix(r.Payload, "https://x/") {
			t.Errorf("Payload should be a full URL, got %q", r.Payload)
		}
		if r.Payload == "https://x/..;/admin" {
			found = true
		}
	}
	if !found {
		t.Error("Expected https://x/..;/admin among payloads")
	}
}

func TestVerbMutations(t *testing.T) {
	base := &types.Request{Method: "GET", URL: "https://x/admin?a=1"}
	muts := verbMutations(base)

	// 11 methods, 3x11 overrides, 2x3x3 carriers, 3 methods x (query→body, both)
	if want := 11 + 33 + 18 + 6; len(muts) != want {
		t.Errorf("Expected %d mutations, got %d", want, len(muts))
	}

	byPayload := map[string]*types.Request{}
	for _, m := range muts {
		byPayload[m.payload] = m.req
	}

	req := byPayload["POST: query→body"]
	if req == nil {
		t.Fatal("Missing query→body relocation")
	}
	if req.Target() != "/admin" || string(req.Body) != "a=1" || req.Method != "POST" {
		t.Errorf("Unexpected relocation %s %s %q", req.Method, req.Target(), req.Body)
	}
	if req.ContentType() != formContentType {
		t.Errorf("Expected form content type, got %q", req.ContentType())
	}
	if _, ok := byPayload["PUT: body→query"]; ok {
		t.Error("body→query needs a body")
	}

	req = byPayload["PUT + X-HTTP-Method: DELETE"]
	if req == nil || req.Method != "PUT" {
		t.Fatal("Missing carrier override")
	}
	if v, _ := req.HeaderValue("X-HTTP-Method"); v != "DELETE" {
		t.Errorf("Expected DELETE override, got %q", v)
	}
}

func TestVerbBodyToQuery(t *testing.T) {
	base := &types.Request{
		Method:  "POST",
		URL:     "https://x/admin",
		Headers: []types.Header{{Name: "Content-Type", Value: formContentType}},
		Body:    []byte("role=admin"),
	}
	for _, m := range relocations(base, "PATCH") {
		if m.payload != "PATCH: body→query" {
			continue
		}
		if m.req.Target() != "/admin?role=admin" || len(m.req.Body) != 0 {
			t.Errorf("Unexpected relocation %s %q", m.req.Target(), m.req.Body)
		}
		if m.req.ContentType() != "" {
			t.Error("Content-Type should be dropped with the body")
		}
		return
	}
	t.Error("Missing body→query relocation")
}

func TestParamAppends(t *testing.T) {
	src := payload.MapSource{payload.Params: {"admin=true"}}
	sender := &fakeSender{}
	env, results := newEnv(t, "https://x/admin?a=1", sender, src)

	Param{}.Execute(context.Background(), env)

	if len(*results) < 1 || len(*results) > 1+ParamCaseClones {
		t.Fatalf("Unexpected result count %d", len(*results))
	}
	if got := sender.sent()[0].Target(); got != "/admin?a=1&admin=true" {
		t.Errorf("Expected /admin?a=1&admin=true, got %s", got)
	}
	for _, r := range *results {
		if !strings.EqualFold(r.Payload, "admin=true") {
			t.Errorf("Unexpected payload %q", r.Payload)
		}
	}
}

func TestTrailingDot(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"example.com", "example.com."},
		{"example.com:8443", "example.com.:8443"},
		{"example.com.", "example.com."},
	}
	for _, tt := range tests {
		if got := trailingDotHost(tt.host); got != tt.want {
			t.Errorf("trailingDotHost(%q): expected %q, got %q", tt.host, tt.want, got)
		}
	}

	sender := &fakeSender{}
	env, results := newEnv(t, "https://x:8443/admin", sender, nil)
	TrailingDot{}.Execute(context.Background(), env)
	if len(*results) != 1 || (*results)[0].Payload != "Host: x.:8443" {
		t.Fatalf("Unexpected results %v", *results)
	}
	if v, _ := sender.sent()[0].HeaderValue("Host"); v != "x.:8443" {
		t.Errorf("Expected Host x.:8443, got %s", v)
	}
}

func TestTrailingSlash(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://x/admin", "/admin/"},
		{"https://x/admin/", "/admin"},
		{"https://x/admin?a=1", "/admin/?a=1"},
	}
	for _, tt := range tests {
		sender := &fakeSender{}
		env, _ := newEnv(t, tt.url, sender, nil)
		TrailingSlash{}.Execute(context.Background(), env)
		if got := sender.sent()[0].Target(); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.url, tt.want, got)
		}
	}
}

func TestCaseBudgets(t *testing.T) {
	tests := []struct {
		length int
		want   int
	}{
		{0, CaseVariants},
		{50, CaseVariants},
		{51, CaseVariantsMedium},
		{100, CaseVariantsMedium},
		{101, CaseVariantsLong},
	}
	for _, tt := range tests {
		if got := caseVariantCount(tt.length); got != tt.want {
			t.Errorf("caseVariantCount(%d): expected %d, got %d", tt.length, tt.want, got)
		}
	}
}

func TestCaseTargets(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))

	targets := caseTargets(rng, "/administrator", "debug=true")
	if len(targets) > MaxCaseCombinations {
		t.Errorf("Expected at most %d combinations, got %d", MaxCaseCombinations, len(targets))
	}
	if targets[0] != "/administrator?debug=true" {
		t.Errorf("Expected original first, got %s", targets[0])
	}
	for _, tg := range targets {
		if !strings.EqualFold(tg, "/administrator?debug=true") {
			t.Errorf("Variant changed more than case: %s", tg)
		}
	}

	paths := caseTargets(rng, "/administrator", "")
	if len(paths) > CaseVariants+1 {
		t.Errorf("Expected at most %d path variants, got %d", CaseVariants+1, len(paths))
	}

	onlyQuery := caseTargets(rng, "", "q=abc")
	for _, tg := range onlyQuery {
		if !strings.HasPrefix(tg, "/?") {
			t.Errorf("Expected /? prefix, got %s", tg)
		}
	}
}

func TestCookieExisting(t *testing.T) {
	src := payload.MapSource{payload.Params: {"admin=true"}}
	sender := &fakeSender{}
	env, results := newEnv(t, "https://x/admin", sender, src)
	env.Baseline = env.Baseline.WithAddedHeader("Cookie", "sid=abc; role=user")

	Cookie{FuzzExisting: true}.Execute(context.Background(), env)

	existing := 0
	for _, r := range *results {
		if r.AttackType == "Cookie (Existing)" {
			existing++
		}
	}
	if existing != 2*len(CookieFuzzValues) {
		t.Errorf("Expected %d existing-cookie results, got %d", 2*len(CookieFuzzValues), existing)
	}

	first := sender.sent()[0]
	if v, _ := first.HeaderValue("Cookie"); v != "sid=true; role=user" {
		t.Errorf("Expected sid=true; role=user, got %q", v)
	}

	last := sender.sent()[len(sender.sent())-1]
	if v, _ := last.HeaderValue("Cookie"); !strings.HasPrefix(v, "sid=abc; role=user; ") {
		t.Errorf("Expected appended cookie, got %q", v)
	}
	if n := len(last.Headers); n != 2 {
		t.Errorf("Expected the Cookie header to be updated in place, got %d headers", n)
	}
}

func TestCookieParams(t *testing.T) {
	env, _ := newEnv(t, "https://x/admin", &fakeSender{}, nil)
	got := cookieParams(env, []string{"admin=true"})
	if got[0] != "admin=true" || got[1] != "Admin=true" || got[2] != "ADMIN=true" {
		t.Errorf("Unexpected cookie params %v", got)
	}
}

func TestProtocolTimeoutSkipsAttempt(t *testing.T) {
	pool, err := requester.NewTimeoutPool(4)
	if err != nil {
		t.Fatalf("NewTimeoutPool failed: %v", err)
	}
	defer pool.Release()

	sender := &fakeSender{fn: func(ctx context.Context, req *types.Request) (*types.Response, error) {
		if req.Protocol == "HTTP/2" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &types.Response{StatusCode: 200}, nil
	}}
	env, results := newEnv(t, "https://x/admin", sender, nil)

	start := time.Now()
	Protocol{Timeout: 50 * time.Millisecond, Runner: pool}.Execute(context.Background(), env)

	if len(*results) != len(ProtocolVersions)-1 {
		t.Errorf("Expected %d results, got %d", len(ProtocolVersions)-1, len(*results))
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Timed-out attempt blocked the strategy")
	}
	for _, r := range *results {
		if r.Payload == "Protocol: HTTP/2" {
			t.Error("Timed-out attempt produced a result")
		}
	}
}

func TestProtocolCompanionHeaders(t *testing.T) {
	base := &types.Request{Method: "GET", URL: "https://x/admin"}
	muts := protocolMutations(base)
	if len(muts) != 4 {
		t.Fatalf("Expected 4 mutations, got %d", len(muts))
	}
	if v, _ := muts[0].req.HeaderValue("Upgrade"); v != "h2c" {
		t.Errorf("Expected Upgrade: h2c, got %q", v)
	}
	if _, ok := muts[0].req.HeaderValue("HTTP2-Settings"); !ok {
		t.Error("Expected HTTP2-Settings header")
	}
	if v, _ := muts[2].req.HeaderValue("Connection"); v != "close" {
		t.Errorf("Expected Connection: close, got %q", v)
	}
	if muts[3].req.Protocol != "HTTP/0.9" || len(muts[3].req.Headers) != 0 {
		t.Errorf("Unexpected HTTP/0.9 request %+v", muts[3].req)
	}
}

func TestEncodeChar(t *testing.T) {
	tests := []struct {
		enc  string
		want string
	}{
		{"url", "%61"},
		{"double-url", "%2561"},
		{"triple-url", "%252561"},
		{"unicode", "%u0061"},
		{"unicode-long", "\\u0061"},
		{"unicode-overflow", "%u4e61"},
	}
	for _, tt := range tests {
		if got := encodeChar('a', tt.enc); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.enc, tt.want, got)
		}
	}
}

func TestEncodeRandomKeepsSeparators(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for range 20 {
		got := encodeRandom(rng, "/a/b", "url")
		if strings.Count(got, "/") != 2 {
			t.Errorf("Separator was encoded: %s", got)
		}
	}
	if encodeRandom(rng, "", "url") != "" {
		t.Error("Expected empty input to stay empty")
	}
}

func TestEncodingMutations(t *testing.T) {
	base := &types.Request{
		Method:  "POST",
		URL:     "https://x/admin?id=1",
		Headers: []types.Header{{Name: "Content-Type", Value: "application/json"}},
		Body:    []byte(`{"role":"user","n":5}`),
	}
	muts := encodingMutations(rand.New(rand.NewPCG(1, 1)), base)

	// path variants plus name and value for three params, per encoding
	if want := len(Encodings) * (EncodedPathVariants + 3*2); len(muts) != want {
		t.Errorf("Expected %d mutations, got %d", want, len(muts))
	}
	for _, m := range muts {
		if strings.HasPrefix(m.payload, "Path ") && m.req.RawQuery() != "id=1" {
			t.Errorf("Path variant lost the query: %s", m.req.URL)
		}
		if strings.HasPrefix(m.payload, "Param value url (body): role=") {
			if !strings.Contains(string(m.req.Body), `"n":5`) {
				t.Errorf("Other body params were changed: %s", m.req.Body)
			}
		}
	}
}

func TestEncodingSkipsLongPath(t *testing.T) {
	sender := &fakeSender{}
	env, _ := newEnv(t, "https://x/"+strings.Repeat("a", MaxEncodedPathLength), sender, nil)
	Encoding{}.Execute(context.Background(), env)
	if len(sender.sent()) != 0 {
		t.Errorf("Expected no requests, got %d", len(sender.sent()))
	}
}

func TestContentTypeFromQuery(t *testing.T) {
	sender := &fakeSender{}
	env, results := newEnv(t, "https://x/admin?user=a%20b&role=1", sender, nil)

	ContentType{}.Execute(context.Background(), env)

	if len(*results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(*results))
	}
	for _, req := range sender.sent() {
		if req.Method != "POST" {
			t.Errorf("Expected POST, got %s", req.Method)
		}
	}
	if body := string(sender.sent()[1].Body); body != `{"user":"a b","role":"1"}` {
		t.Errorf("Unexpected JSON body %s", body)
	}
	mp := sender.sent()[3]
	if !strings.HasPrefix(mp.ContentType(), "multipart/form-data; boundary=----WebKitFormBoundary") {
		t.Errorf("Unexpected multipart content type %q", mp.ContentType())
	}
	if ps := bodyParams(mp); len(ps) != 2 || ps[0].Value != "a b" {
		t.Errorf("Multipart body does not round-trip: %v", ps)
	}
}

func TestContentTypeSkipsCurrent(t *testing.T) {
	base := &types.Request{
		Method:  "POST",
		URL:     "https://x/admin",
		Headers: []types.Header{{Name: "Content-Type", Value: "application/xml"}},
		Body:    []byte("<root><role>user</role></root>"),
	}
	muts := contentTypeMutations(base, contentTypeParams(base))
	if len(muts) != 3 {
		t.Fatalf("Expected 3 mutations, got %d", len(muts))
	}
	for _, m := range muts {
		if m.payload == "Content-Type: XML" {
			t.Error("Current content type should be skipped")
		}
	}
}

func TestBodyParams(t *testing.T) {
	tests := []struct {
		name string
		ct   string
		body string
		want string
	}{
		{"form", "application/x-www-form-urlencoded", "a=1&b=2", "a=1,b=2"},
		{"json", "application/json; charset=utf-8", `{"a":"1","b":true,"c":{"d":1}}`, "a=1,b=true"},
		{"xml", "text/xml", "<r><a>1</a><b>2</c></r>", "a=1"},
		{"unknown", "text/plain", "a=1", ""},
	}
	for _, tt := range tests {
		req := &types.Request{Headers: []types.Header{{Name: "Content-Type", Value: tt.ct}}, Body: []byte(tt.body)}
		var got []string
		for _, p := range bodyParams(req) {
			got = append(got, p.Name+"="+p.Value)
		}
		if strings.Join(got, ",") != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.want, strings.Join(got, ","))
		}
	}
}

func TestReplaceBodyParam(t *testing.T) {
	tests := []struct {
		ct   string
		body string
		want string
	}{
		{formContentType, "a=1&b=2", "a=1&X=9"},
		{jsonContentType, `{"a":"1","b": 2}`, `{"a":"1","X": "9"}`},
		{xmlContentType, "<r><b>2</b></r>", "<r><X>9</X></r>"},
		{"multipart/form-data; boundary=zz", "--zz\r\nContent-Disposition: form-data; name=\"b\"\r\n\r\n2\r\n--zz--\r\n",
			"--zz\r\nContent-Disposition: form-data; name=\"X\"\r\n\r\n9\r\n--zz--\r\n"},
	}
	for _, tt := range tests {
		req := &types.Request{Headers: []types.Header{{Name: "Content-Type", Value: tt.ct}}, Body: []byte(tt.body)}
		got := string(replaceBodyParam(req, "b", param{Name: "X", Value: "9"}).Body)
		if got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.ct, tt.want, got)
		}
	}
}

func TestAttemptStopsWhenCancelled(t *testing.T) {
	sender := &fakeSender{}
	env, results := newEnv(t, "https://x/admin", sender, nil)
	calls := 0
	env.ShouldContinue = func() bool {
		calls++
		return calls <= 2
	}

	Verb{}.Execute(context.Background(), env)

	if len(sender.sent()) != 2 || len(*results) != 2 {
		t.Errorf("Expected 2 attempts, got %d sends and %d results", len(sender.sent()), len(*results))
	}
}

func TestAttemptCapabilityLost(t *testing.T) {
	sender := &fakeSender{fn: func(context.Context, *types.Request) (*types.Response, error) {
		return nil, types.ErrCapabilityLost
	}}
	env, results := newEnv(t, "https://x/admin", sender, nil)

	Verb{}.Execute(context.Background(), env)

	if len(sender.sent()) != 1 {
		t.Errorf("Expected a single attempt, got %d", len(sender.sent()))
	}
	if len(*results) != 0 || !env.Lost() {
		t.Error("Expected no results and a lost capability")
	}
}

func TestAttemptTransportErrorContinues(t *testing.T) {
	n := 0
	sender := &fakeSender{fn: func(context.Context, *types.Request) (*types.Response, error) {
		n++
		if n == 1 {
			return nil, errors.New("connection reset")
		}
		return &types.Response{StatusCode: 200}, nil
	}}
	env, results := newEnv(t, "https://x/admin", sender, nil)
	pacer := &countingPacer{}
	env.Pacer = pacer

	TrailingSlash{}.Execute(context.Background(), env)
	Verb{}.Execute(context.Background(), env)

	sent := len(sender.sent())
	if len(*results) != sent-1 {
		t.Errorf("Expected %d results, got %d", sent-1, len(*results))
	}
	if pacer.n != sent {
		t.Errorf("Expected one wait per send (%d), got %d", sent, pacer.n)
	}
}
