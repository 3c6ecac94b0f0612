package main

import (
	"fmt"
	"net/url"
	"sort"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/dogecoinfoundation/borkbot/pkg/webapi"
	"github.com/go-resty/resty/v2"
)

/*
	These commands are convenience CLI tools that operate on a
	running borkbot by calling the admin REST API.
*/

type SubCommandArgs struct {
	RemoteAdminServer string
}

// PrintStatus shows message counts per status, the unspent balance and
// the mention cursor.
func PrintStatus(c bork.Config, s SubCommandArgs) error {
	u, err := adminAPIURL(c, s, "/status")
	if err != nil {
		return err
	}
	var status webapi.StatusResponse
	if err := getURL(u, &status); err != nil {
		return err
	}
	statuses := make([]string, 0, len(status.Counts))
	for st := range status.Counts {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		fmt.Printf("%-20s %d\n", st, status.Counts[bork.MessageStatus(st)])
	}
	fmt.Printf("%-20s %s DOGE\n", "balance", status.Balance.String())
	fmt.Printf("%-20s %s\n", "cursor", status.Cursor)
	return nil
}

// ListMessages prints the messages in one status, oldest first.
func ListMessages(c bork.Config, s SubCommandArgs, status string) error {
	if !bork.MessageStatus(status).IsValid() {
		return fmt.Errorf("unknown status: %s", status)
	}
	u, err := adminAPIURL(c, s, "/messages?status="+url.QueryEscape(status))
	if err != nil {
		return err
	}
	var msgs []bork.Message
	if err := getURL(u, &msgs); err != nil {
		return err
	}
	for _, m := range msgs {
		fmt.Printf("%s  @%-16s %-16s %v %s\n", m.ID, m.UserHandle, m.Status, m.TxIDs(), m.LastError)
	}
	return nil
}

// work out the remote admin URL from args or config and return
// a complete path with our best guess
func adminAPIURL(c bork.Config, s SubCommandArgs, path string) (string, error) {
	base := ""
	if s.RemoteAdminServer != "" {
		base = s.RemoteAdminServer
	} else {
		host := c.WebAPI.Bind
		if host == "" {
			host = "localhost"
		}
		base = fmt.Sprintf("http://%s:%s/", host, c.WebAPI.Port)
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	p, err := url.Parse(path)
	if err != nil {
		return "", err
	}

	return u.ResolveReference(p).String(), nil
}

// fetch JSON from a remote borkbot admin API
func getURL(u string, result any) error {
	resp, err := resty.New().R().SetResult(result).Get(u)
	if err != nil {
		return fmt.Errorf("failed to send HTTP request: %v", err)
	}
	if resp.IsError() {
		return fmt.Errorf("unexpected response status code: %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
