package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
)

type apiCall struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

// fakeZoho serves both the accounts token endpoint and the CRM API.
type fakeZoho struct {
	t         *testing.T
	refreshes atomic.Int32
	tokenErr  bool

	mu     sync.Mutex
	calls  []apiCall
	routes map[string]func(w http.ResponseWriter)
}

func newFakeZoho(t *testing.T) *fakeZoho {
	return &fakeZoho{t: t, routes: map[string]func(http.ResponseWriter){}}
}

func (f *fakeZoho) json(route string, status int, body string) {
	f.routes[route] = func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (f *fakeZoho) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/oauth/v2/token" {
		f.serveToken(w, r)
		return
	}

	c := apiCall{Method: r.Method, Path: strings.TrimPrefix(r.URL.Path, "/crm/v8/"), Auth: r.Header.Get("Authorization")}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &c.Body)
	}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()

	if h, ok := f.routes[r.Method+" "+c.Path]; ok {
		h(w)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (f *fakeZoho) serveToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		f.t.Errorf("ParseForm() error = %v", err)
	}
	if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "rt" {
		f.t.Errorf("token form = %v", r.PostForm)
	}
	if r.PostForm.Get("client_id") != "cid" || r.PostForm.Get("client_secret") != "secret" {
		f.t.Errorf("client credentials not sent in params: %v", r.PostForm)
	}

	w.Header().Set("Content-Type", "application/json")
	if f.tokenErr {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_code"}`)
		return
	}
	n := f.refreshes.Add(1)
	_, _ = fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":3600,"api_domain":"https://www.zohoapis.eu","token_type":"Bearer"}`, n)
}

func (f *fakeZoho) find(method, path string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeZoho) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testConfig(url string) Config {
	return Config{ClientID: "cid", ClientSecret: "secret", RefreshToken: "rt", APIURL: url, AccountsURL: url}
}

func newTestAdapter(t *testing.T, fake *fakeZoho, opts ...Option) *Adapter {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	a, err := New(testConfig(srv.URL), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

const leadList = `{"data":[
	{"id":"506156000055855023","First_Name":"Max","Last_Name":"Mustermann","Email":"max@expoya.com","Company":"Expoya GmbH","Designation":"CEO"},
	{"id":"506156000055855024","First_Name":"Anna","Last_Name":"Schmidt","Email":"anna@voltage.at","Company":"Voltage Solutions","Phone":"+43 1 234"}
],"info":{"per_page":200,"count":2,"more_records":false}}`

const writeOK = `{"data":[{"code":"SUCCESS","details":{"id":"%s"},"message":"record added","status":"success"}]}`

func TestIsLeadID(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"506156000055855023": true,
		"1234567890123456":   true,
		"123456789012345":    false,
		"50615600005585502a": false,
		"Max Mustermann":     false,
	}
	for in, want := range cases {
		if got := IsLeadID(in); got != want {
			t.Fatalf("IsLeadID(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCreateContactMissingCompanyMakesNoRequest(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	a := newTestAdapter(t, fake)

	res := a.CreateContact(context.Background(), contractx.ContactInput{
		FirstName: "Max", LastName: "Mustermann", Company: "", Email: "max@expoya.com",
	})
	if res.Outcome != contractx.OutcomeInvalid || !strings.HasPrefix(res.Text(), "❌") {
		t.Fatalf("CreateContact() = %s, want invalid", res.Text())
	}
	if !strings.Contains(res.Text(), "company") {
		t.Fatalf("CreateContact() text = %q, want company named", res.Text())
	}
	if n := fake.callCount(); n != 0 {
		t.Fatalf("api calls = %d, want 0", n)
	}
	if n := fake.refreshes.Load(); n != 0 {
		t.Fatalf("token refreshes = %d, want 0", n)
	}
}

func TestCreateContact(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	fake.json("POST Leads", http.StatusCreated, fmt.Sprintf(writeOK, "506156000099999001"))
	a := newTestAdapter(t, fake)

	res := a.CreateContact(context.Background(), contractx.ContactInput{
		FirstName: "Max", LastName: "Mustermann", Company: "Expoya GmbH", Email: "max@expoya.com", Phone: "+43 664 1",
	})
	if !res.OK() || res.ID != "506156000099999001" {
		t.Fatalf("CreateContact() = %s", res.Text())
	}
	if !strings.Contains(res.Text(), "Max Mustermann @ Expoya GmbH") {
		t.Fatalf("CreateContact() text = %q", res.Text())
	}

	post := fake.find(http.MethodPost, "Leads")[0]
	if post.Auth != "Zoho-oauthtoken tok-1" {
		t.Fatalf("Authorization = %q", post.Auth)
	}
	data := post.Body["data"].([]any)[0].(map[string]any)
	if data["Lead_Source"] != "AI Assistant" || data["Company"] != "Expoya GmbH" || data["Phone"] != "+43 664 1" {
		t.Fatalf("lead payload = %v", data)
	}
}

func TestCreateContactRejectedByZoho(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	fake.json("POST Leads", http.StatusOK, `{"data":[{"code":"DUPLICATE_DATA","details":{},"message":"duplicate data","status":"error"}]}`)
	a := newTestAdapter(t, fake)

	res := a.CreateContact(context.Background(), contractx.ContactInput{
		FirstName: "Max", LastName: "Mustermann", Company: "Expoya GmbH", Email: "max@expoya.com",
	})
	if res.Outcome != contractx.OutcomeRemoteFailure || !strings.Contains(res.Text(), "duplicate data") {
		t.Fatalf("CreateContact() = %s, want remote failure with zoho message", res.Text())
	}
}

func TestExpiredTokenRefreshesOnce(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	fake.json("DELETE Tasks/506156000011111111", http.StatusOK, fmt.Sprintf(writeOK, "506156000011111111"))
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tm, err := NewTokenManager(testConfig(srv.URL), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	tm.accessToken = "stale"
	tm.expiresAt = now.Add(-time.Minute)

	a, err := New(testConfig(srv.URL), WithTokenManager(tm))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if res := a.DeleteItem(context.Background(), contractx.ItemTask, "506156000011111111"); !res.OK() {
			t.Fatalf("DeleteItem() = %s", res.Text())
		}
	}

	if n := fake.refreshes.Load(); n != 1 {
		t.Fatalf("token refreshes = %d, want 1", n)
	}
	for _, c := range fake.find(http.MethodDelete, "Tasks/506156000011111111") {
		if c.Auth != "Zoho-oauthtoken tok-1" {
			t.Fatalf("Authorization = %q, want refreshed token", c.Auth)
		}
	}
	if want := now.Add(3600*time.Second - 300*time.Second); !tm.ExpiresAt().Equal(want) {
		t.Fatalf("ExpiresAt() = %v, want %v", tm.ExpiresAt(), want)
	}
}

func TestTokenManagerConcurrentCallersShareRefresh(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	tm, err := NewTokenManager(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	var wg sync.WaitGroup
	tokens := make([]string, 16)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := tm.Token(context.Background())
			if err != nil {
				t.Errorf("Token() error = %v", err)
			}
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	if n := fake.refreshes.Load(); n != 1 {
		t.Fatalf("token refreshes = %d, want 1", n)
	}
	for _, tok := range tokens {
		if tok != "tok-1" {
			t.Fatalf("Token() = %q, want tok-1", tok)
		}
	}
}

func TestTokenRefreshFailureIsAuthFailure(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	fake.tokenErr = true
	a := newTestAdapter(t, fake)

	res := a.DeleteItem(context.Background(), contractx.ItemLead, "506156000011111111")
	if res.Outcome != contractx.OutcomeAuthFailure || !strings.HasPrefix(res.Text(), "❌") {
		t.Fatalf("DeleteItem() = %s, want auth failure", res.Text())
	}
	if n := fake.callCount(); n != 0 {
		t.Fatalf("api calls = %d, want 0 after failed refresh", n)
	}
}

func TestNewTokenManagerRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenManager(Config{ClientID: "cid", ClientSecret: "secret"}); err == nil {
		t.Fatalf("NewTokenManager() error = nil, want missing refresh token")
	}
}

func TestCreateTaskLinksLead(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	fake.json("GET Leads", http.StatusOK, leadList)
	fake.json("POST Tasks", http.StatusCreated, fmt.Sprintf(writeOK, "506156000022222222"))
	a := newTestAdapter(t, fake)

	res := a.CreateTask(context.Background(), contractx.TaskInput{Title: "Follow up", Body: "Call", DueDate: "2026-11-01", Target: "Max Mustermann"})
	if !res.OK() || res.ID != "506156000022222222" || len(res.Warnings) != 0 {
		t.Fatalf("CreateTask() = %s", res.Text())
	}

	task := fake.find(http.MethodPost, "Tasks")[0].Body["data"].([]any)[0].(map[string]any)
	if task["What_Id"] != "506156000055855023" || task["$se_module"] != "Leads" {
		t.Fatalf("task link fields = %v", task)
	}
	if task["Subject"] != "Follow up" || task["Status"] != "Not Started" || task["Priority"] != "Normal" || task["Due_Date"] != "2026-11-01" {
		t.Fatalf("task payload = %v", task)
	}
}

func TestCreateTaskUnresolvedTargetStillCreates(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	fake.json("GET Leads", http.StatusOK, leadList)
	fake.json("POST Tasks", http.StatusCreated, fmt.Sprintf(writeOK, "506156000022222223"))
	a := newTestAdapter(t, fake)

	res := a.CreateTask(context.Background(), contractx.TaskInput{Title: "Follow up", Target: "nonexistent person"})
	if !res.OK() || !strings.Contains(res.Text(), "not linked") {
		t.Fatalf("CreateTask() = %s, want success with not linked", res.Text())
	}
	task := fake.find(http.MethodPost, "Tasks")[0].Body["data"].([]any)[0].(map[string]any)
	if _, ok := task["What_Id"]; ok {
		t.Fatalf("task payload carries What_Id: %v", task)
	}
	if _, ok := task["$se_module"]; ok {
		t.Fatalf("task payload carries $se_module: %v", task)
	}
}

func TestCreateNoteNestsParent(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	fake.json("POST Notes", http.StatusCreated, fmt.Sprintf(writeOK, "506156000033333333"))
	a := newTestAdapter(t, fake)

	res := a.CreateNote(context.Background(), contractx.NoteInput{Title: "Call", Content: "Talked about roof", Target: "506156000055855023"})
	if !res.OK() || res.ID != "506156000033333333" {
		t.Fatalf("CreateNote() = %s", res.Text())
	}
	if n := len(fake.find(http.MethodGet, "Leads")); n != 0 {
		t.Fatalf("lead lookups = %d, want 0 for a numeric id", n)
	}

	note := fake.find(http.MethodPost, "Notes")[0].Body["data"].([]any)[0].(map[string]any)
	parent := note["Parent_Id"].(map[string]any)
	module := parent["module"].(map[string]any)
	if parent["id"] != "506156000055855023" || module["api_name"] != "Leads" {
		t.Fatalf("Parent_Id = %v", parent)
	}
	if note["Note_Title"] != "Call" || note["Note_Content"] != "Talked about roof" {
		t.Fatalf("note payload = %v", note)
	}
}

func TestCreateNoteUnknownLead(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	fake.json("GET Leads", http.StatusOK, leadList)
	a := newTestAdapter(t, fake)

	res := a.CreateNote(context.Background(), contractx.NoteInput{Content: "x", Target: "nonexistent person"})
	if res.Outcome != contractx.OutcomeNotFound {
		t.Fatalf("CreateNote() = %s, want not found", res.Text())
	}
	if n := len(fake.find(http.MethodPost, "Notes")); n != 0 {
		t.Fatalf("notes created = %d, want 0", n)
	}
}

func TestUpdateEntityRemapsToLead(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	fake.json("GET Leads", http.StatusOK, leadList)
	fake.json("PUT Leads/506156000055855023", http.StatusOK, fmt.Sprintf(writeOK, "506156000055855023"))
	a := newTestAdapter(t, fake)

	res := a.UpdateEntity(context.Background(), "max@expoya.com", contractx.EntityPerson, map[string]any{
		"job":    "CTO",
		"domain": "https://expoya.com",
		"size":   "0",
		"hack":   "x",
	})
	if !res.OK() || res.ID != "506156000055855023" {
		t.Fatalf("UpdateEntity() = %s", res.Text())
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("Skipped = %+v, want size and hack", res.Skipped)
	}

	data := fake.find(http.MethodPut, "Leads/506156000055855023")[0].Body["data"].([]any)[0].(map[string]any)
	if data["Designation"] != "CTO" || data["Domain"] != "expoya.com" {
		t.Fatalf("PUT payload = %v", data)
	}
	if _, ok := data["No_of_Employees"]; ok {
		t.Fatalf("PUT payload carries rejected size: %v", data)
	}
}

func TestUpdateEntityCompanyAliasMatchesCompanyName(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	fake.json("GET Leads", http.StatusOK, leadList)
	fake.json("PUT Leads/506156000055855024", http.StatusOK, fmt.Sprintf(writeOK, "506156000055855024"))
	a := newTestAdapter(t, fake)

	res := a.UpdateEntity(context.Background(), "Voltage Solutions", contractx.EntityCompany, map[string]any{"website": "voltage.at"})
	if !res.OK() || !strings.Contains(res.Text(), "website: https://voltage.at") {
		t.Fatalf("UpdateEntity() = %s", res.Text())
	}
}

func TestDeleteItemAlreadyGone(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	a := newTestAdapter(t, fake)

	res := a.DeleteItem(context.Background(), contractx.ItemNote, "506156000044444444")
	if res.Outcome != contractx.OutcomeWarning || !strings.Contains(res.Text(), "already deleted") {
		t.Fatalf("DeleteItem() = %s, want already deleted warning", res.Text())
	}
}

func TestDeleteItemRejectedRecord(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	fake.json("DELETE Leads/506156000099999999", http.StatusOK,
		`{"data":[{"code":"INVALID_DATA","details":{"id":"506156000099999999"},"message":"the related id given seems to be invalid","status":"error"}]}`)
	a := newTestAdapter(t, fake)

	res := a.DeleteItem(context.Background(), contractx.ItemLead, "506156000099999999")
	if res.Outcome != contractx.OutcomeRemoteFailure || !strings.HasPrefix(res.Text(), contractx.MarkFailure) {
		t.Fatalf("DeleteItem() = %s, want remote failure", res.Text())
	}
	if !strings.Contains(res.Text(), "seems to be invalid") {
		t.Fatalf("DeleteItem() text = %q, want zoho message", res.Text())
	}
}

func TestDeleteItemEmptyBody(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	fake.routes["DELETE Notes/506156000044444445"] = func(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) }
	a := newTestAdapter(t, fake)

	if res := a.DeleteItem(context.Background(), contractx.ItemNote, "506156000044444445"); !res.OK() {
		t.Fatalf("DeleteItem() = %s, want success", res.Text())
	}
}

func TestSearchEmptyModule(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	fake.routes["GET Leads"] = func(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) }
	a := newTestAdapter(t, fake)

	res := a.Search(context.Background(), "Max")
	if res.Outcome != contractx.OutcomeEmpty || !strings.Contains(res.Text(), contractx.NoResults) {
		t.Fatalf("Search() = %s, want no results", res.Text())
	}
}

func TestSearchFormatsLeads(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	fake.json("GET Leads", http.StatusOK, leadList)
	a := newTestAdapter(t, fake)

	res := a.Search(context.Background(), "Expoya")
	if !res.OK() || len(res.Lines) != 1 {
		t.Fatalf("Search() = %s, want one lead", res.Text())
	}
	want := "👤 Max Mustermann (CEO) @ Expoya GmbH <max@expoya.com> (ID: 506156000055855023)"
	if res.Lines[0] != want {
		t.Fatalf("Search() line = %q, want %q", res.Lines[0], want)
	}

	list := fake.find(http.MethodGet, "Leads")
	if len(list) != 1 {
		t.Fatalf("GET Leads calls = %d", len(list))
	}
}

func TestGetDetails(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	fake.json("GET Leads/506156000055855023", http.StatusOK, `{"data":[{
		"id":"506156000055855023","First_Name":"David","Last_Name":"Alaba","Email":"david@fcb.com",
		"Phone":"+43 650 1234567","Mobile":"+43 660 7654321","Company":"FC Bayern AG","Designation":"Player",
		"Street":"Säbener Straße 51","City":"München","Zip_Code":"81547","Country":"Deutschland",
		"Website":"fcbayern.com","LinkedIn":"linkedin.com/in/david-alaba","Lead_Source":"Website",
		"Industry":"Sports","No_of_Employees":500,"Annual_Revenue":750000000,"Roof_Area":150,"Description":"Top player"}]}`)
	a := newTestAdapter(t, fake)

	res := a.GetDetails(context.Background(), "506156000055855023")
	if !res.OK() {
		t.Fatalf("GetDetails() = %s", res.Text())
	}
	text := res.Text()
	for _, want := range []string{"David Alaba", "Player", "david@fcb.com", "+43 650 1234567", "+43 660 7654321",
		"FC Bayern AG", "Säbener Straße 51", "München", "fcbayern.com", "linkedin.com/in/david-alaba",
		"Website", "Sports", "500", "150 m²", "Top player", "506156000055855023"} {
		if !strings.Contains(text, want) {
			t.Fatalf("GetDetails() text missing %q:\n%s", want, text)
		}
	}
}

func TestGetDetailsNotFound(t *testing.T) {
	t.Parallel()

	fake := newFakeZoho(t)
	fake.json("GET Leads/99999000000000001", http.StatusOK, `{}`)
	a := newTestAdapter(t, fake)

	res := a.GetDetails(context.Background(), "99999000000000001")
	if res.Outcome != contractx.OutcomeNotFound {
		t.Fatalf("GetDetails() = %s, want not found", res.Text())
	}
}
