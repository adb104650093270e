package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/communitybot/core/logger"
	"github.com/m3rciful/communitybot/core/telegram/commands"
)

var (
	// ErrInvalidRegistration rejects malformed commands and callbacks.
	ErrInvalidRegistration = errors.New("telegram: invalid registration")
	// ErrDuplicate rejects a second handler for the same name.
	ErrDuplicate = errors.New("telegram: already registered")

	// Bot API limits for menu commands.
	commandName = regexp.MustCompile(`^/[a-z0-9_]{1,32}$`)
)

const maxDescription = 256

// Registry holds bot commands and callback handlers. It is filled during wiring and
// read concurrently by the update handlers afterwards.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]commands.Command
	aliases   map[string]string
	callbacks map[string]tele.HandlerFunc

	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

// RegisterCommand adds a command under name ("/start"). Names and aliases follow the
// Bot API menu rules; a description is required.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	err := r.addCommand(name, cmd)
	if err != nil {
		logger.Warn(context.Background(), "tg.wire", "register.command.skip",
			slog.String("target", name),
			slog.String("cause", err.Error()),
		)
	}
	return err
}

func (r *Registry) addCommand(name string, cmd commands.Command) error {
	if !commandName.MatchString(name) || cmd.Handler == nil {
		return fmt.Errorf("%w: command %q", ErrInvalidRegistration, name)
	}
	if d := strings.TrimSpace(cmd.Description); d == "" || len([]rune(d)) > maxDescription {
		return fmt.Errorf("%w: command %q needs a description of 1-%d characters", ErrInvalidRegistration, name, maxDescription)
	}
	aliases := make([]string, 0, len(cmd.Aliases))
	for _, a := range cmd.Aliases {
		a = "/" + strings.TrimPrefix(a, "/")
		if !commandName.MatchString(a) {
			return fmt.Errorf("%w: alias %q of %q", ErrInvalidRegistration, a, name)
		}
		aliases = append(aliases, a)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range append([]string{name}, aliases...) {
		if _, taken := r.commands[n]; taken {
			return fmt.Errorf("%w: command %q", ErrDuplicate, n)
		}
		if _, taken := r.aliases[n]; taken {
			return fmt.Errorf("%w: command %q", ErrDuplicate, n)
		}
	}
	cmd.Aliases = aliases
	r.commands[name] = cmd
	for _, a := range aliases {
		r.aliases[a] = name
	}
	return nil
}

// ListCommands returns the commands sorted by name. With visibleOnly, hidden and
// access-gated commands are left out.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	return r.menu(func(c commands.Command) bool {
		return !visibleOnly || c.Public()
	})
}

func (r *Registry) menu(keep func(commands.Command) bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tele.Command, 0, len(r.commands))
	for name, c := range r.commands {
		if keep(c) {
			list = append(list, tele.Command{Text: name, Description: c.Description})
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves the command a message text starts with, following aliases.
// A "@botname" suffix and arguments are ignored; the leading slash is optional.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	name, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	name, _, _ = strings.Cut(name, "\n")
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return "", commands.Command{}, false
	}
	name = "/" + strings.TrimPrefix(name, "/")

	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	cmd, ok := r.commands[name]
	if !ok {
		return "", commands.Command{}, false
	}
	return name, cmd, true
}

// Commands returns a copy of the registered commands keyed by name.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// RegisterCallback maps the unique part of a callback data string to h.
func (r *Registry) RegisterCallback(key string, h tele.HandlerFunc) error {
	if key == "" || h == nil || strings.ContainsAny(key, "|\f") {
		return fmt.Errorf("%w: callback %q", ErrInvalidRegistration, key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		return fmt.Errorf("%w: callback %q", ErrDuplicate, key)
	}
	r.callbacks[key] = h
	return nil
}

func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered callback keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the handler for callbacks with an unknown key.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text nobody else claims.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// InitBotCommands publishes the command menu. Everyone sees the public commands;
// each chat in privileged additionally sees the gated ones. Failures are logged and
// the previous menu stays in place.
func InitBotCommands(bot *tele.Bot, reg *Registry, privileged ...int64) {
	if bot == nil || reg == nil {
		return
	}
	ctx := context.Background()
	public := reg.ListCommands(true)
	if err := bot.SetCommands(public); err != nil {
		logger.Error(ctx, "tg.wire", "register.commands.set_failed", slog.String("err", err.Error()))
		return
	}
	full := reg.menu(func(c commands.Command) bool { return !c.Hidden })
	scoped := 0
	for _, chatID := range privileged {
		if chatID == 0 || len(full) == len(public) {
			continue
		}
		scope := tele.CommandScope{Type: tele.CommandScopeChat, ChatID: chatID}
		if err := bot.SetCommands(full, scope); err != nil {
			logger.Warn(ctx, "tg.wire", "register.commands.scope_failed",
				slog.Int64("chat_id", chatID),
				slog.String("err", err.Error()),
			)
			continue
		}
		scoped++
	}
	logger.Info(ctx, "tg.wire", "register.commands.set",
		slog.Int("count", len(public)),
		slog.Int("scoped", scoped),
	)
}
