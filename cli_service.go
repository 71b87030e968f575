package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// cliConfigPath is the config used by serve; spawned subcommands reuse it.
var cliConfigPath string

// --- PID File ---

func loadPIDs(path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("pid file %s: bad line %q", path, line)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

func savePIDs(path string, pids []int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var sb strings.Builder
	for _, pid := range pids {
		sb.WriteString(strconv.Itoa(pid) + "\n")
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// alivePIDs drops processes that no longer exist.
func alivePIDs(pids []int) []int {
	var out []int
	for _, pid := range pids {
		p, err := os.FindProcess(pid)
		if err != nil {
			continue
		}
		if p.Signal(syscall.Signal(0)) == nil {
			out = append(out, pid)
		}
	}
	return out
}

// claimPID records pid in the PID file, keeping other live entries.
func claimPID(path string, pid int) error {
	pids, err := loadPIDs(path)
	if err != nil {
		return err
	}
	live := alivePIDs(pids)
	for _, p := range live {
		if p == pid {
			return nil
		}
	}
	return savePIDs(path, append(live, pid))
}

// releasePID removes pid from the PID file.
func releasePID(path string, pid int) error {
	pids, err := loadPIDs(path)
	if err != nil {
		return err
	}
	out := pids[:0]
	for _, p := range pids {
		if p != pid {
			out = append(out, p)
		}
	}
	return savePIDs(path, out)
}

// --- Process Control ---

type serviceCtl struct {
	configPath string
	pidFile    string
}

func newServiceCtl(name string, args []string) *serviceCtl {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "config file path")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Error: %v", err)
	}
	return &serviceCtl{configPath: *configPath, pidFile: cfg.pidFilePath()}
}

func (s *serviceCtl) running() []int {
	pids, err := loadPIDs(s.pidFile)
	if err != nil {
		fatalf("Error: %v", err)
	}
	return alivePIDs(pids)
}

func (s *serviceCtl) start() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	cmd := exec.Command(exe, "serve", "--config", s.configPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start serve: %w", err)
	}
	return cmd.Process.Release()
}

// stop sends SIGTERM to every recorded process and keeps the ones that
// could not be signalled.
func (s *serviceCtl) stop(pids []int) []int {
	var failed []int
	for _, pid := range pids {
		p, err := os.FindProcess(pid)
		if err == nil {
			err = p.Signal(syscall.SIGTERM)
		}
		if err != nil {
			failed = append(failed, pid)
		}
	}
	if err := savePIDs(s.pidFile, failed); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return failed
}

func cmdStart(args []string) {
	s := newServiceCtl("start", args)
	if len(s.running()) > 0 {
		fatalf("Bot is already running")
	}
	if err := s.start(); err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Println("Bot has started")
}

func cmdStop(args []string) {
	s := newServiceCtl("stop", args)
	pids := s.running()
	if len(pids) == 0 {
		fatalf("Bot is not running")
	}
	if failed := s.stop(pids); len(failed) > 0 {
		fatalf("Failed to stop the bot (pids %v)", failed)
	}
	fmt.Println("Bot has stopped")
}

func cmdRestart(args []string) {
	s := newServiceCtl("restart", args)
	restart(s)
}

func restart(s *serviceCtl) {
	pids := s.running()
	if len(pids) == 0 {
		fatalf("Bot is not running")
	}
	if failed := s.stop(pids); len(failed) > 0 {
		fatalf("Failed to restart the bot (pids %v)", failed)
	}
	if err := s.start(); err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Println("Bot has restarted")
}

func cmdStatus(args []string) {
	s := newServiceCtl("status", args)
	if pids := s.running(); len(pids) > 0 {
		fmt.Printf("Bot is running (pid %v)\n", pids)
		return
	}
	fmt.Println("Bot is not running")
}

// cmdUpdate pulls the working tree and restarts a running bot.
func cmdUpdate(args []string) {
	s := newServiceCtl("update", args)
	out, err := exec.Command("git", "pull").CombinedOutput()
	fmt.Print(string(out))
	if err != nil {
		fatalf("git pull: %v", err)
	}
	if len(s.running()) == 0 {
		fmt.Println("Updated; bot is not running")
		return
	}
	restart(s)
}

// spawnCLI runs a process-control subcommand as a child so it outlives the
// bot it stops.
func spawnCLI(subcommand string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	args := []string{subcommand}
	if cliConfigPath != "" {
		args = append(args, "--config", cliConfigPath)
	}
	cmd := exec.Command(exe, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn %s: %w", subcommand, err)
	}
	go cmd.Wait()
	return nil
}
