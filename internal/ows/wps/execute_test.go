package wps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jobrunner/catena/internal/fetch"
)

func TestExecuteURL(t *testing.T) {
	got, err := ExecuteURL(ExecuteOptions{
		URL:        "http://example.com/wps",
		Identifier: "elevation-profile",
		Inputs:     map[string]string{"name": "transect", "resolution": "high"},
		Store:      true,
		Status:     true,
	})
	if err != nil {
		t.Fatalf("ExecuteURL: %v", err)
	}
	for _, want := range []string{
		"request=Execute",
		"Identifier=elevation-profile",
		"DataInputs=name%3Dtransect%3Bresolution%3Dhigh",
		"storeExecuteResponse=true",
		"status=true",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("url %q missing %q", got, want)
		}
	}
}

func TestExecuteURLMissingConfig(t *testing.T) {
	if _, err := ExecuteURL(ExecuteOptions{Identifier: "x"}); err == nil {
		t.Error("missing url should fail")
	}
	if _, err := ExecuteURL(ExecuteOptions{URL: "http://example.com"}); err == nil {
		t.Error("missing identifier should fail")
	}
}

func TestExecuteBody(t *testing.T) {
	body, err := ExecuteBody(ExecuteOptions{
		Identifier: "elevation-profile",
		Inputs:     map[string]string{"b": "2", "a": "1"},
		Store:      true,
		Status:     true,
	})
	if err != nil {
		t.Fatalf("ExecuteBody: %v", err)
	}
	text := string(body)
	for _, want := range []string{
		"<ows:Identifier>elevation-profile</ows:Identifier>",
		"<wps:LiteralData>1</wps:LiteralData>",
		"<wps:LiteralData>2</wps:LiteralData>",
		`storeExecuteResponse="true"`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("body missing %q", want)
		}
	}
	// Inputs are rendered in identifier order.
	if strings.Index(text, "<ows:Identifier>a</ows:Identifier>") > strings.Index(text, "<ows:Identifier>b</ows:Identifier>") {
		t.Error("inputs not sorted")
	}
}

const acceptedResponse = `<?xml version="1.0"?>
<wps:ExecuteResponse xmlns:wps="http://www.opengis.net/wps/1.0.0"
    xmlns:ows="http://www.opengis.net/ows/1.1"
    statusLocation="%s/status">
  <wps:Status><wps:ProcessAccepted>queued</wps:ProcessAccepted></wps:Status>
</wps:ExecuteResponse>`

const runningResponse = `<?xml version="1.0"?>
<wps:ExecuteResponse xmlns:wps="http://www.opengis.net/wps/1.0.0">
  <wps:Status><wps:ProcessStarted>halfway</wps:ProcessStarted></wps:Status>
</wps:ExecuteResponse>`

const succeededResponse = `<?xml version="1.0"?>
<wps:ExecuteResponse xmlns:wps="http://www.opengis.net/wps/1.0.0"
    xmlns:ows="http://www.opengis.net/ows/1.1">
  <wps:Status><wps:ProcessSucceeded>done</wps:ProcessSucceeded></wps:Status>
  <wps:ProcessOutputs>
    <wps:Output>
      <ows:Identifier>report</ows:Identifier>
      <ows:Title>Report</ows:Title>
      <wps:Data><wps:LiteralData>see http://example.com/report.png</wps:LiteralData></wps:Data>
    </wps:Output>
  </wps:ProcessOutputs>
</wps:ExecuteResponse>`

const failedResponse = `<?xml version="1.0"?>
<wps:ExecuteResponse xmlns:wps="http://www.opengis.net/wps/1.0.0"
    xmlns:ows="http://www.opengis.net/ows/1.1">
  <wps:Status>
    <wps:ProcessFailed>
      <wps:ExceptionReport>
        <ows:Exception>
          <ows:ExceptionText>input line crosses the antimeridian</ows:ExceptionText>
        </ows:Exception>
      </wps:ExceptionReport>
    </wps:ProcessFailed>
  </wps:Status>
</wps:ExecuteResponse>`

func TestJobPollsToSuccess(t *testing.T) {
	var polls atomic.Int32
	var baseURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		if strings.HasSuffix(r.URL.Path, "/status") {
			if polls.Add(1) == 1 {
				_, _ = w.Write([]byte(runningResponse))
			} else {
				_, _ = w.Write([]byte(succeededResponse))
			}
			return
		}
		body := strings.Replace(acceptedResponse, "%s", baseURL, 1)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	baseURL = srv.URL

	client := fetch.New(fetch.Options{})
	job, err := Execute(context.Background(), client, ExecuteOptions{
		URL:        srv.URL,
		Identifier: "elevation-profile",
		Inputs:     map[string]string{"name": "transect"},
		Store:      true,
		Status:     true,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.State != StateRunning {
		t.Fatalf("state after accept = %q", job.State)
	}
	if job.StatusLocation == "" {
		t.Fatal("status location not captured")
	}

	state, err := job.CheckStatus(context.Background())
	if err != nil || state != StateRunning {
		t.Fatalf("first poll = %q, %v", state, err)
	}
	state, err = job.CheckStatus(context.Background())
	if err != nil || state != StateSucceeded {
		t.Fatalf("second poll = %q, %v", state, err)
	}
	if len(job.Outputs) != 1 || job.Outputs[0].Identifier != "report" {
		t.Errorf("outputs = %+v", job.Outputs)
	}

	// Terminal jobs answer without refetching.
	before := polls.Load()
	if state, err = job.CheckStatus(context.Background()); err != nil || state != StateSucceeded {
		t.Errorf("poll after terminal = %q, %v", state, err)
	}
	if polls.Load() != before {
		t.Error("terminal job still polled the server")
	}
}

func TestJobImmediateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(succeededResponse))
	}))
	t.Cleanup(srv.Close)

	client := fetch.New(fetch.Options{})
	job, err := Execute(context.Background(), client, ExecuteOptions{
		URL:        srv.URL,
		Identifier: "elevation-profile",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.State != StateSucceeded {
		t.Errorf("state = %q, want succeeded without polling", job.State)
	}
}

func TestJobFailureCarriesServerText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(failedResponse))
	}))
	t.Cleanup(srv.Close)

	client := fetch.New(fetch.Options{})
	_, err := Execute(context.Background(), client, ExecuteOptions{
		URL:        srv.URL,
		Identifier: "elevation-profile",
	})
	if err == nil {
		t.Fatal("a failed process should error")
	}
	if !strings.Contains(err.Error(), "input line crosses the antimeridian") {
		t.Errorf("err = %v, want the server's exception text", err)
	}
}

func TestParseExecuteResponseWrongRoot(t *testing.T) {
	if _, err := ParseExecuteResponse([]byte(`<?xml version="1.0"?><Other/>`)); err == nil {
		t.Error("wrong root should fail")
	}
}
