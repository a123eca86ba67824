// weftctl is a thin command-line client for a running weft gateway.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/akalogirou/weft/internal/natsbus"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  weftctl submit --file <workflow.json> [--async]")
	fmt.Fprintln(os.Stderr, "  weftctl runs")
	fmt.Fprintln(os.Stderr, "  weftctl run --id <run-id>")
	fmt.Fprintln(os.Stderr, "  weftctl agents")
	fmt.Fprintln(os.Stderr, "  weftctl status")
	fmt.Fprintln(os.Stderr, "  weftctl follow [--run <run-id>] [--all]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Environment:")
	fmt.Fprintln(os.Stderr, "  WEFT_URL       Gateway base URL (default http://localhost:8080)")
	fmt.Fprintln(os.Stderr, "  WEFT_TOKEN     API auth token, if the gateway requires one")
	fmt.Fprintln(os.Stderr, "  WEFT_NATS_URL  NATS URL for follow (default nats://localhost:4222)")
	os.Exit(1)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func parseArgs(args []string) map[string]string {
	result := make(map[string]string)
	for i := 0; i < len(args); i++ {
		if len(args[i]) > 2 && args[i][:2] == "--" {
			key := args[i][2:]
			if i+1 < len(args) && (len(args[i+1]) < 2 || args[i+1][:2] != "--") {
				result[key] = args[i+1]
				i++
			} else {
				result[key] = "true"
			}
		}
	}
	return result
}

type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient() *apiClient {
	base := os.Getenv("WEFT_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	return &apiClient{
		base:  base,
		token: os.Getenv("WEFT_TOKEN"),
		http:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *apiClient) do(method, path string, body io.Reader, out any) error {
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

type runSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

func cmdSubmit(c *apiClient, args map[string]string) {
	file := args["file"]
	if file == "" {
		fatal("--file is required")
	}
	payload, err := os.ReadFile(file)
	if err != nil {
		fatal("read workflow file: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		fatal("workflow file is not valid JSON: %v", err)
	}
	if args["async"] == "true" {
		body["async"] = true
	}
	encoded, _ := json.Marshal(body)

	var result map[string]any
	if err := c.do("POST", "/api/runs", bytes.NewReader(encoded), &result); err != nil {
		fatal("%v", err)
	}

	id, _ := result["id"].(string)
	status, _ := result["status"].(string)
	fmt.Printf("Run %s: %s\n", id, status)

	if status != "running" {
		if tasks, ok := result["tasks"].(map[string]any); ok {
			printTaskTable(tasks)
		}
	}
}

func printTaskTable(tasks map[string]any) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATUS\tAGENT\tERROR")
	for id, raw := range tasks {
		task, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		status, _ := task["status"].(string)
		agent, _ := task["assigned_agent"].(string)
		errMsg, _ := task["error"].(string)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, status, agent, errMsg)
	}
	w.Flush()
}

func cmdRuns(c *apiClient) {
	var runs []runSummary
	if err := c.do("GET", "/api/runs", nil, &runs); err != nil {
		fatal("%v", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tNAME\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Status, r.Name, r.StartedAt.Local().Format(time.RFC3339))
	}
	w.Flush()
}

func cmdRun(c *apiClient, args map[string]string) {
	id := args["id"]
	if id == "" {
		fatal("--id is required")
	}
	var run json.RawMessage
	if err := c.do("GET", "/api/runs/"+id, nil, &run); err != nil {
		fatal("%v", err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, run, "", "  "); err != nil {
		fatal("decode run: %v", err)
	}
	fmt.Println(pretty.String())
}

func cmdAgents(c *apiClient) {
	var agents []struct {
		Name    string `json:"name"`
		Address string `json:"address"`
		Summary string `json:"summary"`
	}
	if err := c.do("GET", "/api/agents", nil, &agents); err != nil {
		fatal("%v", err)
	}
	if len(agents) == 0 {
		fmt.Println("No agents in catalog.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tSUMMARY")
	for _, a := range agents {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Name, a.Address, a.Summary)
	}
	w.Flush()
}

func cmdStatus(c *apiClient) {
	var status json.RawMessage
	if err := c.do("GET", "/api/status", nil, &status); err != nil {
		fatal("%v", err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, status, "", "  "); err != nil {
		fatal("decode status: %v", err)
	}
	fmt.Println(pretty.String())
}

func cmdFollow(args map[string]string) {
	natsURL := os.Getenv("WEFT_NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	conn, err := nats.Connect(natsURL)
	if err != nil {
		fatal("connect to nats: %v", err)
	}
	defer conn.Close()

	topic := natsbus.TopicEventsAnyRun
	switch {
	case args["run"] != "":
		topic = natsbus.TopicRunEvents(args["run"])
	case args["all"] == "true":
		topic = natsbus.TopicEventsAll
	}

	_, err = conn.Subscribe(topic, func(msg *nats.Msg) {
		fmt.Println(string(msg.Data))
	})
	if err != nil {
		fatal("subscribe: %v", err)
	}

	fmt.Fprintf(os.Stderr, "Following %s (ctrl-c to stop)\n", topic)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	command := os.Args[1]
	args := parseArgs(os.Args[2:])
	client := newAPIClient()

	switch command {
	case "submit":
		cmdSubmit(client, args)
	case "runs":
		cmdRuns(client)
	case "run":
		cmdRun(client, args)
	case "agents":
		cmdAgents(client)
	case "status":
		cmdStatus(client)
	case "follow":
		cmdFollow(args)
	default:
		usage()
	}
}
