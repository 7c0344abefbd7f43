package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"relay-pipeline/internal/integrations/paramstore"
)

const (
	defaultLaunchType = "FARGATE"
	defaultEntrypoint = "python main.py"
)

// Relay configures the ingest relay Lambda.
type Relay struct {
	QueueURL          string
	MessageGroupID    string
	DestinationPrefix string
}

// Dispatch configures the task dispatcher Lambda.
type Dispatch struct {
	Cluster        string
	TaskDefinition string
	ContainerName  string
	Subnets        []string
	SecurityGroups []string
	LaunchType     string
	Entrypoint     []string
	AssignPublicIP bool
	// LedgerTable enables launch deduplication when set.
	LedgerTable string
	ParamPrefix string
}

// LoadRelay reads the relay configuration through getenv (usually os.Getenv).
func LoadRelay(getenv func(string) string) (Relay, error) {
	var missing []string
	get := func(key string) string {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Relay{
		QueueURL:          get("QUEUE_URL"),
		MessageGroupID:    get("MESSAGE_GROUP_ID"),
		DestinationPrefix: get("DESTINATION_PREFIX"),
	}
	if len(missing) > 0 {
		return Relay{}, fmt.Errorf("config: missing required environment variables: %v", missing)
	}
	return cfg, nil
}

// LoadDispatch reads the dispatcher configuration. When PARAM_PREFIX is set,
// required values absent from the environment are read from params at
// <prefix>/<name>. params may be nil when no prefix is configured.
func LoadDispatch(ctx context.Context, getenv func(string) string, params paramstore.Getter) (Dispatch, error) {
	prefix := strings.TrimRight(strings.TrimSpace(getenv("PARAM_PREFIX")), "/")
	if prefix != "" && params == nil {
		return Dispatch{}, errors.New("config: PARAM_PREFIX is set but no parameter store was provided")
	}

	var missing []string
	var lookupErr error
	get := func(key, param string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		if prefix != "" && lookupErr == nil {
			name := prefix + "/" + param
			v, err := params.GetParameter(ctx, name)
			switch {
			case err == nil && strings.TrimSpace(v) != "":
				return strings.TrimSpace(v)
			case err != nil && !errors.Is(err, paramstore.ErrNotFound):
				lookupErr = fmt.Errorf("config: read %s: %w", name, err)
				return ""
			}
			missing = append(missing, key+" ("+name+")")
			return ""
		}
		missing = append(missing, key)
		return ""
	}

	cfg := Dispatch{
		Cluster:        get("CLUSTER", "cluster"),
		TaskDefinition: get("TASK_DEFINITION", "task_definition"),
		ContainerName:  get("CONTAINER_NAME", "container_name"),
		Subnets:        paramstore.SplitList(get("SUBNETS", "subnets")),
		SecurityGroups: paramstore.SplitList(get("SECURITY_GROUPS", "security_groups")),
		LaunchType:     strings.TrimSpace(getenv("LAUNCH_TYPE")),
		Entrypoint:     strings.Fields(getenv("ENTRYPOINT")),
		AssignPublicIP: true,
		LedgerTable:    strings.TrimSpace(getenv("LAUNCH_LEDGER_TABLE")),
		ParamPrefix:    prefix,
	}
	if lookupErr != nil {
		return Dispatch{}, lookupErr
	}
	if len(missing) > 0 {
		return Dispatch{}, fmt.Errorf("config: missing required values: %v", missing)
	}

	if cfg.LaunchType == "" {
		cfg.LaunchType = defaultLaunchType
	}
	if len(cfg.Entrypoint) == 0 {
		cfg.Entrypoint = strings.Fields(defaultEntrypoint)
	}
	if raw := strings.TrimSpace(getenv("ASSIGN_PUBLIC_IP")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Dispatch{}, fmt.Errorf("config: ASSIGN_PUBLIC_IP: %w", err)
		}
		cfg.AssignPublicIP = v
	}
	if err := cfg.Validate(); err != nil {
		return Dispatch{}, err
	}
	return cfg, nil
}

// Validate checks values that are present but unusable, such as a subnet list
// made only of separators.
func (c Dispatch) Validate() error {
	var problems []string
	if len(c.Subnets) == 0 {
		problems = append(problems, "SUBNETS has no entries")
	}
	if len(c.SecurityGroups) == 0 {
		problems = append(problems, "SECURITY_GROUPS has no entries")
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: invalid dispatch config: %s", strings.Join(problems, "; "))
	}
	return nil
}
