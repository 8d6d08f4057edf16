package test

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

type RestClient struct {
	client *resty.Client
	assert Assertions
	bearer string
}

type HttpRes struct {
	resp   *resty.Response
	err    error
	assert Assertions
}

type HttpReq struct {
	Body    any
	Headers map[string]string
	Bearer  string
	Result  any
}

func ProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found")
		}
		dir = parent
	}
}

func NewRestClient(t *testing.T, baseUrl string) *RestClient {
	r := resty.New()
	r.SetRedirectPolicy(resty.NoRedirectPolicy())
	r.SetBaseURL(baseUrl)
	return &RestClient{client: r, assert: NewAssertions(t)}
}

func (c *RestClient) Get(path string, opts ...HttpReq) HttpRes {
	return c.invoke("GET", path, opts...)
}

func (c *RestClient) Post(path string, opts ...HttpReq) HttpRes {
	return c.invoke("POST", path, opts...)
}

func (c *RestClient) SetBearerAuth(token string) *RestClient {
	c.bearer = token
	return c
}

func (c *RestClient) invoke(method string, path string, opts ...HttpReq) HttpRes {
	q := c.client.R()
	var result map[string]any
	bearerAuth := ""
	for _, opt := range opts {
		if opt.Body != nil {
			q = q.SetBody(opt.Body)
		}
		if opt.Bearer != "" {
			bearerAuth = opt.Bearer
		}
		if opt.Result != nil {
			q = q.SetResult(opt.Result)
		} else {
			q = q.SetResult(&result)
		}
		for key, value := range opt.Headers {
			q = q.SetHeader(key, value)
		}
	}
	if bearerAuth == "" && c.bearer != "" {
		bearerAuth = c.bearer
	}
	if bearerAuth != "" {
		q = q.SetHeader("Authorization", fmt.Sprintf("Bearer %s", bearerAuth))
	}
	resp, err := q.Execute(method, path)
	return HttpRes{
		resp:   resp,
		err:    err,
		assert: c.assert,
	}
}

func (r HttpRes) IsOk() HttpRes {
	r.assert.Equals(r.resp.StatusCode(), http.StatusOK)
	return r
}

func (r HttpRes) Is(status int) HttpRes {
	r.assert.Equals(r.resp.StatusCode(), status)
	return r
}

func (r HttpRes) Result() []byte {
	return r.resp.Body()
}

// Path extracts a value from the JSON body.
func (r HttpRes) Path(path string) gjson.Result {
	return gjson.GetBytes(r.Result(), path)
}

func (r HttpRes) MatchJson(pattern string) HttpRes {
	r.assert.MatchJson(string(r.Result()), pattern)
	return r
}
