package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// httpCmd calls /admin/v1/<name> on a running server and prints the body.
// The server only answers loopback callers.
func httpCmd(name, method string, args []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	timeout := fs.Duration("timeout", 10*time.Second, "request timeout")
	_ = fs.Parse(args)

	body, code, err := adminRequest(&http.Client{Timeout: *timeout}, method, *baseURL, name)
	if err != nil {
		fail("request:", err)
	}
	fmt.Println(body)
	if code/100 != 2 {
		os.Exit(1)
	}
}

func adminRequest(cl *http.Client, method, baseURL, name string) (string, int, error) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/admin/v1/" + name
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := cl.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return strings.TrimSpace(string(b)), resp.StatusCode, err
}
