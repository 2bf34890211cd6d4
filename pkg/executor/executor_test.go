package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/trungdtbk/pss1830/internal/testutil"
	"github.com/trungdtbk/pss1830/pkg/session"
	"github.com/trungdtbk/pss1830/pkg/util"
)

func TestRun_PreservesOrder(t *testing.T) {
	fake := testutil.NewFakeSession().
		On("show version", "Software Version: 1830PSS").
		On("show general name", "System Name : PSS-AKL-01").
		On("config soft upgrade status", "Operation : Load")

	cmds := session.Plain("show general name", "config soft upgrade status", "show version")
	responses, err := New("pss-akl-1", fake).Run(context.Background(), cmds)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(responses) != len(cmds) {
		t.Fatalf("got %d responses for %d commands", len(responses), len(cmds))
	}
	want := []string{"System Name : PSS-AKL-01", "Operation : Load", "Software Version: 1830PSS"}
	for i := range want {
		if responses[i] != want[i] {
			t.Errorf("responses[%d] = %q, want %q", i, responses[i], want[i])
		}
	}
}

func TestRun_PassesPromptAndAnswer(t *testing.T) {
	fake := testutil.NewFakeSession().On("config soft upgrade backout", "ok")
	cmd := session.Command{Command: "config soft upgrade backout", Prompt: `\(Y/N\)`, Answer: "Y"}

	if _, err := New("pss-akl-1", fake).Run(context.Background(), []session.Command{cmd}); err != nil {
		t.Fatal(err)
	}
	sent := fake.Sent()
	if len(sent) != 1 || sent[0] != cmd {
		t.Errorf("sent %+v, want %+v", sent, cmd)
	}
}

func TestRun_TransportErrorIsFatal(t *testing.T) {
	fake := testutil.NewFakeSession().
		On("show version", "v").
		Fail("show bogus", errors.New("connection reset"))

	cmds := session.Plain("show version", "show bogus", "show version")
	responses, err := New("pss-akl-1", fake).Run(context.Background(), cmds)
	if err == nil {
		t.Fatal("expected error")
	}
	if responses != nil {
		t.Errorf("expected no partial responses, got %v", responses)
	}
	if util.KindOf(err) != util.KindTransport {
		t.Errorf("KindOf() = %s, want transport", util.KindOf(err))
	}
	if fake.Count("show version") != 1 {
		t.Error("batch should stop at the first failure")
	}
}

func TestFilter(t *testing.T) {
	cmds := session.Plain("show version", "config soft upgrade commit", "show redundancy")

	kept, warnings := Filter(cmds, false)
	if len(kept) != 3 || warnings != nil {
		t.Errorf("Filter(false) = %v, %v", kept, warnings)
	}

	kept, warnings = Filter(cmds, true)
	if len(kept) != 2 || kept[1].Command != "show redundancy" {
		t.Errorf("kept = %v", kept)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v", warnings)
	}
	want := "Only show commands are supported when using check mode, not executing config soft upgrade commit"
	if warnings[0] != want {
		t.Errorf("warning = %q", warnings[0])
	}
}
