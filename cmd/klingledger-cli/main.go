// klingledger-cli is a command-line client for interacting with a klingledgerd node.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/rpcclient"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

// mineTimeout bounds GET /mine, which blocks until a proof is found.
const mineTimeout = 10 * time.Minute

// output selects between rendered tables and raw JSON.
type output struct {
	json bool
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	rpcURL := fmt.Sprintf("http://127.0.0.1:%d", config.DefaultRPCPort)
	var timeout time.Duration
	out := output{json: !term.IsTerminal(int(os.Stdout.Fd()))}

	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		case args[0] == "--timeout" && len(args) > 1:
			timeout = parseTimeout(args[1])
			args = args[2:]
		case strings.HasPrefix(args[0], "--timeout="):
			timeout = parseTimeout(args[0][len("--timeout="):])
			args = args[1:]
		case args[0] == "--json":
			out.json = true
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cmd := args[0]
	cmdArgs := args[1:]
	if timeout == 0 && cmd == "mine" {
		timeout = mineTimeout
	}
	client := rpcclient.NewWithTimeout(rpcURL, timeout)

	switch cmd {
	case "chain":
		cmdChain(client, out)
	case "mine":
		cmdMine(client, out)
	case "send":
		cmdSend(client, out, cmdArgs)
	case "pending":
		cmdPending(client, out)
	case "validate":
		cmdValidate(client, out)
	case "block":
		cmdBlock(client, out, cmdArgs)
	case "node", "status":
		cmdNode(client, out)
	case "version":
		fmt.Printf("klingledger-cli %s\n", config.Version)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: klingledger-cli [global flags] <command> [flags]

Global flags:
  --rpc <url>          Node API endpoint (default: http://127.0.0.1:%d)
  --timeout <dur>      HTTP timeout (default: 10s, 10m for mine)
  --json               Print raw JSON (default when stdout is not a terminal)

Commands:
  chain                           Show the full chain
  mine                            Forge a block from pending transactions
  send --from <s> --to <r> --amount <amt>
                                  Submit a transaction
  pending                         Show pending transactions
  validate                        Verify the node's chain
  block <index|hash>              Show block details
  node                            Show node identity and chain parameters
  version                         Show version
`, config.DefaultRPCPort)
}

func parseTimeout(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		fatal("invalid --timeout %q: %v", s, err)
	}
	return d
}

// ── chain ───────────────────────────────────────────────────────────────

func cmdChain(client *rpcclient.Client, out output) {
	result, err := client.Chain()
	if err != nil {
		fatal("chain: %v", err)
	}
	if out.json {
		printJSON(result)
		return
	}

	data := pterm.TableData{{"Index", "Timestamp", "Txs", "Proof", "Previous hash"}}
	for _, b := range result.Chain {
		data = append(data, []string{
			strconv.FormatUint(b.Index, 10),
			formatTimestamp(b.Timestamp),
			strconv.Itoa(len(b.Transactions)),
			strconv.FormatUint(b.Proof, 10),
			short(b.PreviousHash),
		})
	}
	renderTable(data)
	pterm.Info.Printfln("Length: %d", result.Length)
}

// ── mine ────────────────────────────────────────────────────────────────

func cmdMine(client *rpcclient.Client, out output) {
	spinner, _ := startSpinner(out, "Searching proof of work...")
	result, err := client.Mine()
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		fatal("mine: %v", err)
	}
	if out.json {
		printJSON(result)
		return
	}

	pterm.Success.Printfln("%s: block %d (proof %d, %d transactions)",
		result.Message, result.Index, result.Proof, len(result.Transactions))
	printTransactions(result.Transactions)
}

// ── send ────────────────────────────────────────────────────────────────

func cmdSend(client *rpcclient.Client, out output, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	from := fs.String("from", "", "Sender")
	to := fs.String("to", "", "Recipient")
	amountStr := fs.String("amount", "", "Amount (decimal)")
	fs.Parse(args)

	if *from == "" || *to == "" || *amountStr == "" {
		fatal("Usage: klingledger-cli send --from <sender> --to <recipient> --amount <amt>")
	}
	amount, err := decimal.NewFromString(*amountStr)
	if err != nil {
		fatal("invalid amount %q: %v", *amountStr, err)
	}
	t, err := tx.New(*from, *to, amount)
	if err != nil {
		fatal("%v", err)
	}

	msg, err := client.SubmitTransaction(t)
	if err != nil {
		fatal("send: %v", err)
	}
	if out.json {
		printJSON(map[string]string{"message": msg})
		return
	}
	pterm.Success.Println(msg)
}

// ── pending ─────────────────────────────────────────────────────────────

func cmdPending(client *rpcclient.Client, out output) {
	result, err := client.Pending()
	if err != nil {
		fatal("pending: %v", err)
	}
	if out.json {
		printJSON(result)
		return
	}

	if result.Count == 0 {
		pterm.Info.Println("No pending transactions")
		return
	}
	printTransactions(result.Transactions)
	pterm.Info.Printfln("Pending: %d", result.Count)
}

// ── validate ────────────────────────────────────────────────────────────

func cmdValidate(client *rpcclient.Client, out output) {
	result, err := client.Validate()
	if err != nil {
		fatal("validate: %v", err)
	}
	if out.json {
		printJSON(result)
	} else if result.Valid {
		pterm.Success.Printfln("Chain is valid (%d blocks)", result.Length)
	} else {
		pterm.Error.Printfln("Chain is invalid: %s", result.Error)
	}
	if !result.Valid {
		os.Exit(2)
	}
}

// ── block ───────────────────────────────────────────────────────────────

func cmdBlock(client *rpcclient.Client, out output, args []string) {
	if len(args) < 1 {
		fatal("Usage: klingledger-cli block <index|hash>")
	}

	result, err := client.Block(args[0])
	if err != nil {
		fatal("block: %v", err)
	}
	if out.json {
		printJSON(result)
		return
	}

	b := result.Block
	pterm.DefaultBox.WithTitle(fmt.Sprintf("Block %d", b.Index)).Println(strings.Join([]string{
		"Hash:          " + result.Hash.String(),
		"Previous hash: " + b.PreviousHash,
		"Timestamp:     " + formatTimestamp(b.Timestamp),
		"Proof:         " + strconv.FormatUint(b.Proof, 10),
		"Transactions:  " + strconv.Itoa(len(b.Transactions)),
	}, "\n"))
	printTransactions(b.Transactions)
}

// ── node ────────────────────────────────────────────────────────────────

func cmdNode(client *rpcclient.Client, out output) {
	info, err := client.Node()
	if err != nil {
		fatal("node: %v", err)
	}
	if out.json {
		printJSON(info)
		return
	}

	renderTable(pterm.TableData{
		{"Field", "Value"},
		{"Node ID", info.NodeID},
		{"Version", info.Version},
		{"Chain", info.ChainName},
		{"Difficulty", strconv.Itoa(info.Difficulty)},
		{"Mining reward", info.MiningReward},
		{"Encoding", strconv.Itoa(info.EncodingVersion)},
		{"Length", strconv.Itoa(info.Length)},
		{"Tip", info.TipHash.String()},
		{"Pending", strconv.Itoa(info.Pending)},
		{"Mined", strconv.FormatUint(info.Mined, 10)},
	})
}

// ── Output helpers ──────────────────────────────────────────────────────

func printTransactions(txs []tx.Transaction) {
	if len(txs) == 0 {
		return
	}
	data := pterm.TableData{{"#", "Sender", "Recipient", "Amount"}}
	for i, t := range txs {
		data = append(data, []string{strconv.Itoa(i), t.Sender, t.Recipient, t.Amount.String()})
	}
	renderTable(data)
}

func renderTable(data pterm.TableData) {
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		fatal("render table: %v", err)
	}
}

func startSpinner(out output, text string) (*pterm.SpinnerPrinter, error) {
	if out.json {
		return nil, nil
	}
	return pterm.DefaultSpinner.WithRemoveWhenDone().Start(text)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("encode output: %v", err)
	}
}

func formatTimestamp(ts float64) string {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC().Format("2006-01-02 15:04:05.000 UTC")
}

// short abbreviates a block hash for table output.
func short(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:16] + "..."
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
