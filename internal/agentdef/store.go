package agentdef

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/vinayprograms/agentkit/logging"
)

// ErrNotFound is returned by Get for unknown agent types.
var ErrNotFound = errors.New("agent type not found")

// GeneralPurposeType is the built-in default agent type.
const GeneralPurposeType = "general-purpose"

const generalPurposePrompt = `You are an agent for a coding assistant. Given the user's message, use the available tools to complete the task.

Your strengths:
- Searching for code, configurations, and patterns across codebases
- Analyzing multiple files to understand system architecture
- Performing multi-step research tasks

Guidelines:
- Be thorough and check multiple locations
- Consider different naming conventions
- In your final response, share relevant details and findings
- Provide clear, actionable information`

// builtins returns the built-in agent definitions. They load first, so a
// user file reusing a built-in agent-type is shadowed (first-loaded wins).
func builtins() []*Definition {
	return []*Definition{
		{
			AgentType:    GeneralPurposeType,
			WhenToUse:    "General-purpose agent for researching, searching code, and multi-step tasks",
			AllowedTools: ToolList{Wildcard},
			SystemPrompt: generalPurposePrompt,
			Source:       "built-in",
		},
	}
}

// Store is a lookup table of agent definitions by agent-type. Reads are safe
// from any goroutine; the table only changes on Load or a Watch reload.
type Store struct {
	mu     sync.RWMutex
	defs   map[string]*Definition
	order  []string
	dir    string
	logger *logging.Logger
}

// NewStore creates a store seeded with the built-in definitions.
func NewStore() *Store {
	s := &Store{
		defs:   make(map[string]*Definition),
		logger: logging.New().WithComponent("agentdef"),
	}
	for _, def := range builtins() {
		s.defs[def.AgentType] = def
		s.order = append(s.order, def.AgentType)
	}
	return s
}

// Load scans dir recursively for .md definition files and merges them into
// the store. A malformed file is logged and skipped without failing the
// load; duplicate agent-types keep the first-loaded definition. A missing
// directory is not an error — built-ins are always available.
func (s *Store) Load(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dir = dir
	return s.loadLocked(dir)
}

func (s *Store) loadLocked(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		s.logger.Debug("agents directory does not exist", map[string]interface{}{"dir": dir})
		return nil
	}

	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(entry.Name(), ".md") {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable agent file", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			return nil
		}

		def, err := Parse(string(content))
		if err != nil {
			s.logger.Warn("skipping malformed agent file", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			return nil
		}
		def.Source = path

		if _, exists := s.defs[def.AgentType]; exists {
			s.logger.Warn("duplicate agent-type, first-loaded wins", map[string]interface{}{
				"agent_type": def.AgentType,
				"path":       path,
			})
			return nil
		}

		s.defs[def.AgentType] = def
		s.order = append(s.order, def.AgentType)
		s.logger.Debug("loaded agent definition", map[string]interface{}{
			"agent_type": def.AgentType,
			"path":       path,
		})
		return nil
	})
}

// Get returns the definition for an agent type, or ErrNotFound.
func (s *Store) Get(agentType string) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[agentType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, agentType)
	}
	return def, nil
}

// List returns all definitions in load order.
func (s *Store) List() []*Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	defs := make([]*Definition, 0, len(s.order))
	for _, agentType := range s.order {
		defs = append(defs, s.defs[agentType])
	}
	return defs
}

// reload rebuilds the table from built-ins plus the watched directory.
func (s *Store) reload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.defs = make(map[string]*Definition)
	s.order = nil
	for _, def := range builtins() {
		s.defs[def.AgentType] = def
		s.order = append(s.order, def.AgentType)
	}
	if err := s.loadLocked(s.dir); err != nil {
		s.logger.Warn("agent reload failed", map[string]interface{}{
			"dir":   s.dir,
			"error": err.Error(),
		})
	}
}

// Watch reloads the store whenever the loaded directory changes, until the
// context is cancelled. Load must have been called first.
func (s *Store) Watch(ctx context.Context) error {
	s.mu.RLock()
	dir := s.dir
	s.mu.RUnlock()
	if dir == "" {
		return fmt.Errorf("no agents directory loaded")
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("agents directory does not exist: %s", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	// Load walks recursively, so the watch covers subdirectories too.
	if err := watchTree(watcher, dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					if event.Op&fsnotify.Create != 0 {
						if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
							_ = watchTree(watcher, event.Name)
						}
					}
					s.logger.Info("agents directory changed, reloading", map[string]interface{}{
						"event": event.String(),
					})
					s.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("watcher error", map[string]interface{}{"error": err.Error()})
			}
		}
	}()
	return nil
}

// watchTree adds watches for dir and every non-hidden subdirectory, matching
// the directories Load scans.
func watchTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if strings.HasPrefix(entry.Name(), ".") && path != dir {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
