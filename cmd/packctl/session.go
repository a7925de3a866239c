package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/packhouse/coordinator/pkg/events"
	"github.com/packhouse/coordinator/pkg/packing"
	"github.com/packhouse/coordinator/pkg/session"
	"github.com/packhouse/coordinator/pkg/types"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Start, resume and drive a packing session",
}

var (
	sessionClientID   string
	sessionListName   string
	sessionResumeID   string
	sessionSourceFile string
)

var sessionRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start (or resume) a session and drive it from stdin commands until EOF or 'end'",
	Long: `run acquires the slot lock, optionally loads a source packing-list
bundle, then reads one command per line from stdin:

  start <order_number_or_barcode>
  scan <order_number> <barcode>
  skip <order_number>
  end

On EOF or an explicit 'end' line the session is ended, its summary is
printed as JSON, and the lock is released.`,
	RunE: runSession,
}

func init() {
	sessionRunCmd.Flags().StringVar(&sessionClientID, "client", "", "Client id (required)")
	sessionRunCmd.Flags().StringVar(&sessionListName, "list", "", "Packing list name (required)")
	sessionRunCmd.Flags().StringVar(&sessionResumeID, "resume", "", "Existing session id to resume (omit to start a new session)")
	sessionRunCmd.Flags().StringVar(&sessionSourceFile, "source", "", "Path to a JSON packing-list bundle to load (new sessions only)")
	sessionRunCmd.MarkFlagRequired("client")
	sessionRunCmd.MarkFlagRequired("list")

	sessionCmd.AddCommand(sessionRunCmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	if sessionClientID == "" || sessionListName == "" {
		return errors.New("--client and --list are required")
	}
	if sessionResumeID != "" && sessionSourceFile != "" {
		return errors.New("--source applies to new sessions only; omit it with --resume")
	}

	var sourceBundle []byte
	if sessionSourceFile != "" {
		data, err := os.ReadFile(sessionSourceFile)
		if err != nil {
			return fmt.Errorf("read source bundle: %w", err)
		}
		sourceBundle = data
	}

	sess, err := sessions.Start(types.ClientID(sessionClientID), sessionListName, sessionResumeID, sourceBundle)
	if err != nil {
		var typed *types.Error
		if errors.As(err, &typed) && typed.Lock != nil {
			fmt.Fprintf(os.Stderr, "slot locked by %s (worker %s), last heartbeat %s ago; kind=%s\n",
				typed.Lock.HolderHost, typed.Lock.WorkerName, time.Since(typed.Lock.HeartbeatAt).Round(time.Second), typed.Kind)
		}
		return err
	}
	fmt.Fprintf(os.Stdout, "session %s started in %s\n", sess.SessionID, sess.WorkDir)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "end":
			return finishSession(sess)
		case "start":
			if len(fields) != 2 {
				fmt.Fprintln(os.Stderr, "usage: start <order_number_or_barcode>")
				continue
			}
			outcome, order, err := sess.Engine().StartOrder(fields[1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "start_order error: %v\n", err)
				continue
			}
			printStartOutcome(outcome, order)
		case "scan":
			if len(fields) != 3 {
				fmt.Fprintln(os.Stderr, "usage: scan <order_number> <barcode>")
				continue
			}
			clientProfile, err := sessions.ClientProfile(types.ClientID(sessionClientID))
			if err != nil {
				fmt.Fprintf(os.Stderr, "client profile error: %v\n", err)
				continue
			}
			result, err := sess.Engine().ScanSKU(clientProfile, fields[1], fields[2])
			if err != nil {
				fmt.Fprintf(os.Stderr, "scan_sku error: %v\n", err)
				publishErrorEvent(sess, "scan_sku", err)
				continue
			}
			printScanResult(result)
			publishScanEvents(sess, fields[1], result)
		case "skip":
			if len(fields) != 2 {
				fmt.Fprintln(os.Stderr, "usage: skip <order_number>")
				continue
			}
			if err := sess.Engine().SkipOrder(fields[1]); err != nil {
				fmt.Fprintf(os.Stderr, "skip_order error: %v\n", err)
				publishErrorEvent(sess, "skip_order", err)
			}
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return finishSession(sess)
}

func finishSession(sess *session.Session) error {
	summary, err := sessions.End(sess)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func printStartOutcome(outcome packing.StartOutcome, order *types.Order) {
	switch outcome {
	case packing.StartAlreadyCompleted:
		fmt.Println("order already completed")
	case packing.StartUnknown:
		fmt.Println("order not found in loaded packing list")
	case packing.StartResumed:
		fmt.Printf("order %s started (%d items)\n", order.Number, len(order.Items))
	}
}

// publishScanEvents emits item_packed for every accepted scan and
// order_completed when that scan finished the order, giving the UI layer
// the same two signals the stdout printer shows the operator.
func publishScanEvents(sess *session.Session, orderNumber string, result packing.ScanResult) {
	if broker == nil || result.Outcome != packing.ScanAccepted {
		return
	}
	packed := events.New(events.EventItemPacked, sess.SessionID, sess.ListName)
	packed.Metadata["order_number"] = orderNumber
	packed.Metadata["sku"] = string(result.SKU)
	packed.Metadata["packed"] = fmt.Sprintf("%d", result.Packed)
	packed.Metadata["required"] = fmt.Sprintf("%d", result.Required)
	broker.Publish(packed)

	if result.OrderComplete {
		completed := events.New(events.EventOrderCompleted, sess.SessionID, sess.ListName)
		completed.Metadata["order_number"] = orderNumber
		broker.Publish(completed)
	}
}

// publishErrorEvent surfaces a command failure to the UI layer alongside
// the stderr line the CLI itself prints.
func publishErrorEvent(sess *session.Session, kind string, err error) {
	if broker == nil {
		return
	}
	errEvent := events.New(events.EventErrorOccurred, sess.SessionID, sess.ListName)
	errEvent.Metadata["kind"] = kind
	errEvent.Metadata["message"] = err.Error()
	broker.Publish(errEvent)
}

func printScanResult(result packing.ScanResult) {
	switch result.Outcome {
	case packing.ScanAccepted:
		fmt.Printf("accepted %s (%d/%d)", result.SKU, result.Packed, result.Required)
		if result.OrderComplete {
			fmt.Print(" - order complete")
		}
		fmt.Println()
	case packing.ScanWrongSKU:
		fmt.Printf("wrong sku: %s\n", result.SKU)
	case packing.ScanOverScan:
		fmt.Printf("over-scan: %s already at %d/%d\n", result.SKU, result.Packed, result.Required)
	case packing.ScanNoOrderSelected:
		fmt.Println("no order selected for this scan")
	}
}
