package server_test

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/protocol"
	"github.com/frankenmichl/twopence/server"
)

func TestStartInject_Success_StreamsToFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")
	tx := newEngineTx(t)

	payload := protocol.FormatInject("root", 5, dest)
	if err := server.StartInject(tx, server.OSFilesystem{}, payload); err != nil {
		t.Fatalf("StartInject: %v", err)
	}
	if tx.MajorCode() != 0 {
		t.Fatalf("major = %d, want 0", tx.MajorCode())
	}
	if tx.Done() {
		t.Fatalf("inject transaction must stay open until EOF arrives")
	}

	if err := tx.RecvPacket(twopence.PacketFileData, []byte("hello")); err != nil {
		t.Fatalf("RecvPacket data: %v", err)
	}
	if err := tx.RecvPacket(twopence.PacketEOF, nil); err != nil {
		t.Fatalf("RecvPacket EOF: %v", err)
	}
	if !tx.Done() {
		t.Fatalf("expected transaction done after EOF closes the sink")
	}
	if tx.MinorCode() != 0 {
		t.Fatalf("minor = %d, want 0", tx.MinorCode())
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("file content = %q, want %q", got, "hello")
	}
}

func TestStartInject_OpenFailure_SendsMajorErrnoMinorZero(t *testing.T) {
	tx := newEngineTx(t)
	// A path under a directory that does not exist cannot be created.
	payload := protocol.FormatInject("root", 1, "/nonexistent-dir-xyz/out.txt")

	if err := server.StartInject(tx, server.OSFilesystem{}, payload); err != nil {
		t.Fatalf("StartInject: %v", err)
	}
	if !tx.Done() {
		t.Fatalf("expected transaction done immediately on open failure")
	}
	if tx.MajorCode() != int(syscall.ENOENT) {
		t.Fatalf("major = %d, want ENOENT", tx.MajorCode())
	}
	if tx.MinorCode() != 0 {
		t.Fatalf("minor = %d, want 0", tx.MinorCode())
	}
}

func TestStartInject_InvalidUser_Fails(t *testing.T) {
	tx := newEngineTx(t)
	payload := protocol.FormatInject("bad user", 1, "/tmp/whatever")
	err := server.StartInject(tx, server.OSFilesystem{}, payload)
	if err == nil {
		t.Fatalf("expected an error for an invalid username")
	}
	if !tx.Done() {
		t.Fatalf("expected transaction done")
	}
}
