package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/vanyastaff/nebula-sub011/internal/action"
	"github.com/vanyastaff/nebula-sub011/internal/config"
	"github.com/vanyastaff/nebula-sub011/internal/credential"
	"github.com/vanyastaff/nebula-sub011/internal/events"
	"github.com/vanyastaff/nebula-sub011/internal/execution"
	"github.com/vanyastaff/nebula-sub011/internal/resilience"
	"github.com/vanyastaff/nebula-sub011/internal/resource"
	"github.com/vanyastaff/nebula-sub011/internal/types"
	"github.com/vanyastaff/nebula-sub011/internal/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run <workflow-file>",
	Short: "Execute a workflow definition",
	Long: `Run parses a workflow definition, validates it and executes it with
the configured scheduler. Progress events stream to the log; the
journal is written to the configured sink. The command exits non-zero
when the execution fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger := cfg.Logging.Logger()

		def, err := loadWorkflow(args[0])
		if err != nil {
			return err
		}
		applyExecutionDefaults(def, cfg)

		registry := action.NewRegistry()
		if err := action.RegisterBuiltins(registry); err != nil {
			return err
		}

		opts := []execution.Option{
			execution.WithLogger(logger),
			execution.WithMaxParallel(cfg.Execution.MaxParallelNodes),
		}

		if creds, err := buildCredentialManager(cfg, logger); err != nil {
			return err
		} else if creds != nil {
			opts = append(opts, execution.WithCredentials(creds))
		}

		if policies, err := buildPolicies(cfg); err != nil {
			return err
		} else if len(policies) > 0 {
			opts = append(opts, execution.WithPolicies(policies))
		}

		pools, err := buildResourceRegistry(cfg)
		if err != nil {
			return err
		}
		if pools != nil {
			defer pools.Close(context.WithoutCancel(cmd.Context()))
			opts = append(opts, execution.WithResources(pools))
		}

		bus := events.NewBus(
			events.WithBufferSize(cfg.Events.BufferSize),
			events.WithBusLogger(logger),
		)
		defer bus.Close()
		opts = append(opts, execution.WithBus(bus))

		sink, closeSink, err := buildJournalSink(cfg)
		if err != nil {
			return err
		}
		defer closeSink()
		opts = append(opts, execution.WithJournal(sink))

		sub := bus.Subscribe(events.Filter{})
		defer sub.Close()
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub.Consume(cmd.Context(), func(event events.Event) {
				logger.Info("event",
					slog.String("type", string(event.Type)),
					slog.String("node_id", event.NodeID.String()),
					slog.String("status", event.Status),
				)
			})
		}()

		result, err := execution.NewExecutor(registry, opts...).Run(cmd.Context(), def)
		sub.Close()
		wg.Wait()
		if err != nil {
			return err
		}

		printResult(cmd, def, result)
		if result.Status != execution.ExecutionCompleted {
			return types.NewErrorf(types.EXECUTION_FAILED, "execution %s %s", result.ExecutionID, result.Status)
		}
		return nil
	},
}

// applyExecutionDefaults backfills workflow-level settings from the
// runtime configuration. A workflow document always wins over config.
func applyExecutionDefaults(def *workflow.Definition, cfg *config.Config) {
	if def.Config.MaxParallelNodes <= 0 {
		def.Config.MaxParallelNodes = cfg.Execution.MaxParallelNodes
	}
	if def.Config.DefaultTimeout == 0 {
		def.Config.DefaultTimeout = cfg.Execution.DefaultTimeout
	}
	if def.Config.DefaultRetry == nil {
		def.Config.DefaultRetry = cfg.Execution.DefaultRetry
	}
	if cfg.Execution.ContinueOnError {
		def.Config.ContinueOnError = true
	}
}

// buildCredentialManager wires the configured provider. Without a
// master key in the environment, credential support is disabled and
// workflows referencing credentials fail at activation.
func buildCredentialManager(cfg *config.Config, logger *slog.Logger) (*credential.Manager, error) {
	key := cfg.Credentials.MasterKey()
	if key.IsZero() {
		return nil, nil
	}

	var storage credential.Storage
	switch cfg.Credentials.Provider {
	case "file":
		fs, err := credential.NewFileStorage(cfg.Credentials.Path)
		if err != nil {
			return nil, err
		}
		storage = fs
	default:
		storage = credential.NewMemoryStorage()
	}

	opts := []credential.ManagerOption{credential.WithLogger(logger)}
	if cfg.Credentials.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Credentials.RedisAddr,
			DB:   cfg.Credentials.RedisDB,
		})
		opts = append(opts, credential.WithRefreshLock(credential.NewRedisRefreshLock(client)))
	}
	return credential.NewManager(storage, []byte(key.Expose()), opts...)
}

// buildPolicies converts the per-service policy records to executor
// form, normalizing the service names.
func buildPolicies(cfg *config.Config) (map[types.Key]resilience.PolicyConfig, error) {
	if len(cfg.Policies) == 0 {
		return nil, nil
	}
	policies := make(map[types.Key]resilience.PolicyConfig, len(cfg.Policies))
	for name, record := range cfg.Policies {
		key, err := types.NewKey(name)
		if err != nil {
			return nil, types.WrapError(types.CONFIG_VALIDATION_FAILED, "policy name "+name, err)
		}
		policies[key] = record
	}
	return policies, nil
}

// buildResourceRegistry constructs the named pools. Every pool loans
// HTTP client sessions; nodes declare them by pool name.
func buildResourceRegistry(cfg *config.Config) (*resource.Registry, error) {
	if len(cfg.Pools) == 0 {
		return nil, nil
	}
	registry := resource.NewRegistry()
	for name, pc := range cfg.Pools {
		key, err := types.NewKey(name)
		if err != nil {
			return nil, types.WrapError(types.CONFIG_VALIDATION_FAILED, "pool name "+name, err)
		}
		pool, err := resource.NewPool(action.NewHTTPSessionFactory(), resource.PoolConfig{
			MinSize:          pc.MinSize,
			MaxSize:          pc.MaxSize,
			AcquireTimeout:   pc.AcquireTimeout,
			IdleTimeout:      pc.IdleTimeout,
			EvictionInterval: pc.EvictionInterval,
		})
		if err != nil {
			return nil, err
		}
		if err := registry.Register(key, pool); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// buildJournalSink returns the configured sink and a close func. An
// empty journal path keeps entries in memory for the duration of the
// run.
func buildJournalSink(cfg *config.Config) (execution.Sink, func(), error) {
	if cfg.Journal.Path == "" {
		return execution.NewMemorySink(), func() {}, nil
	}
	f, err := os.OpenFile(cfg.Journal.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, types.WrapError(types.CONFIG_LOAD_FAILED, "opening journal file "+cfg.Journal.Path, err)
	}
	return execution.NewJSONLinesSink(f), func() { f.Close() }, nil
}

func printResult(cmd *cobra.Command, def *workflow.Definition, result *execution.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "execution %s: %s\n", result.ExecutionID, result.Status)

	names := make(map[types.NodeID]string, len(def.Nodes))
	ids := make([]types.NodeID, 0, len(result.Nodes))
	for i := range def.Nodes {
		names[def.Nodes[i].ID] = def.Nodes[i].Name
	}
	for id := range result.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return names[ids[i]] < names[ids[j]] })

	for _, id := range ids {
		nr := result.Nodes[id]
		line := fmt.Sprintf("  %-20s %s", names[id], nr.Status)
		if nr.Attempts > 1 {
			line += fmt.Sprintf(" (attempts: %d)", nr.Attempts)
		}
		if nr.Reason != "" {
			line += " (" + nr.Reason + ")"
		}
		if nr.Err != nil {
			line += ": " + nr.Err.Error()
		}
		fmt.Fprintln(out, line)
	}
}
