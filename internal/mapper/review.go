package mapper

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReviewResult summarizes an interactive review run.
type ReviewResult struct {
	Approved int
	Skipped  int
	Quit     bool
}

// RunReview walks the pending queue interactively. For each item it prints
// the resource name and its candidates, then reads one of:
//
//	1-9  approve that candidate
//	n    reject; the resource is settled as NO_MATCH
//	q    quit; the remaining queue stays on disk for the next run
//
// State is persisted after every decision, so an interrupted session
// resumes exactly where it stopped.
func RunReview(session *Session, in io.Reader, out io.Writer) (ReviewResult, error) {
	var result ReviewResult
	scanner := bufio.NewScanner(in)

	if session.Resolved() {
		fmt.Fprintln(out, "Nothing to review.")
		return result, nil
	}

	total := len(session.Pending)
	for !session.Resolved() {
		item := session.Pending[0]
		remaining := len(session.Pending)

		fmt.Fprintf(out, "\n[%d/%d] %s (%s)\n", total-remaining+1, total, item.Resource.Name, item.Resource.Kind)
		for i, c := range item.Candidates {
			fmt.Fprintf(out, "  %d) %-40s %.3f\n", i+1, c.Name, c.Score)
		}
		fmt.Fprintf(out, "Choose 1-%d, [n]o match, [q]uit: ", len(item.Candidates))

		if !scanner.Scan() {
			// EOF behaves like quit: nothing is lost.
			result.Quit = true
			return result, scanner.Err()
		}
		input := strings.ToLower(strings.TrimSpace(scanner.Text()))

		switch {
		case input == "q":
			result.Quit = true
			fmt.Fprintf(out, "Stopping; %d item(s) left in the queue.\n", remaining)
			return result, nil
		case input == "n":
			if err := session.Skip(item); err != nil {
				return result, err
			}
			result.Skipped++
		default:
			k, err := strconv.Atoi(input)
			if err != nil || k < 1 || k > len(item.Candidates) {
				fmt.Fprintln(out, "Invalid choice, try again.")
				continue
			}
			if err := session.Approve(item, item.Candidates[k-1]); err != nil {
				return result, err
			}
			result.Approved++
		}
	}

	fmt.Fprintf(out, "\nReview complete: %d approved, %d skipped.\n", result.Approved, result.Skipped)
	return result, nil
}
