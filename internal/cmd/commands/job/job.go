package job

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mitchellh/cli"

	"github.com/informaticsmatters/squonk2-dm-api-go/internal/cmd/base"
	"github.com/informaticsmatters/squonk2-dm-api-go/pkg/dmapi"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Find and run Jobs"
}

func (c *Command) Help() string {
	return `Usage: dmapi job <subcommand> [options] [args]

  This command groups subcommands for Data Manager Jobs.`
}

func (c *Command) Run(args []string) int {
	return cli.RunResultHelp
}

type ListCommand struct {
	*base.Command
}

func (c *ListCommand) Synopsis() string {
	return "List the Jobs that can be run"
}

func (c *ListCommand) Help() string {
	return `Usage: dmapi job list [options]` + c.Flags().Help()
}

func (c *ListCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("job list", flag.ContinueOnError))
	c.AddClientFlags(f)
	return f
}

func (c *ListCommand) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	ctx := context.Background()
	_, client, token, ok := c.Connect(ctx)
	if !ok {
		return 1
	}

	resp := client.GetAvailableJobs(ctx, token)
	if !resp.Success() {
		return c.Failed("error listing jobs", resp)
	}
	if err := c.Output(resp.Payload()); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	return 0
}

var errTaskRunning = errors.New("task still running")

type RunCommand struct {
	*base.Command

	flagProject      string
	flagName         string
	flagSpec         string
	flagWait         bool
	flagPollInterval time.Duration
	flagMaxPolls     int
	flagCleanup      bool
}

func (c *RunCommand) Synopsis() string {
	return "Start a Job instance"
}

func (c *RunCommand) Help() string {
	return `Usage: dmapi job run -project=<id> -spec=<file> [options]

  Starts a Job in a project. The Job is described by a JSON specification
  file naming its collection, job and version, and any variables:

      {
        "collection": "rdkit",
        "job": "rdkit-molprops",
        "version": "1.0.0",
        "variables": {"inputFile": "work/100.smi", "outputFile": "work/foo.smi"}
      }

  With -wait the command polls the instance's task until it is done and
  fails if the Job exits with a non-zero code.` + c.Flags().Help()
}

func (c *RunCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("job run", flag.ContinueOnError))
	c.AddClientFlags(f)

	f.StringVar(
		&c.flagProject, "project", "",
		"[PROJECT_ID] (Required) Project to run the Job in.",
	)
	f.StringVar(
		&c.flagName, "name", "dmapi job",
		"Name of the instance.",
	)
	f.StringVar(
		&c.flagSpec, "spec", "",
		"(Required) Path to the Job specification (JSON).",
	)
	f.BoolVar(
		&c.flagWait, "wait", false,
		"Wait for the Job to finish.",
	)
	f.DurationVar(
		&c.flagPollInterval, "poll-interval", 5*time.Second,
		"Interval between task status checks when waiting.",
	)
	f.IntVar(
		&c.flagMaxPolls, "max-polls", 60,
		"Give up waiting after this many status checks.",
	)
	f.BoolVar(
		&c.flagCleanup, "cleanup", false,
		"Delete the instance once the Job has finished. Requires -wait.",
	)

	return f
}

func (c *RunCommand) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	if c.flagProject == "" {
		c.flagProject = os.Getenv("PROJECT_ID")
	}
	if c.flagProject == "" {
		c.UI.Error("project flag is required (-project or PROJECT_ID)")
		return 1
	}
	if c.flagSpec == "" {
		c.UI.Error("spec flag is required")
		return 1
	}
	if c.flagMaxPolls < 1 {
		c.UI.Error("max-polls must be at least 1")
		return 1
	}

	spec, err := readSpec(c.flagSpec)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	ctx := context.Background()
	cfg, client, token, ok := c.Connect(ctx)
	if !ok {
		return 1
	}

	resp := client.StartJobInstance(ctx, token, c.flagProject, c.flagName, spec, dmapi.LaunchOptions{})
	if !resp.Success() {
		return c.Failed("error starting job", resp)
	}
	var started dmapi.StartedInstance
	if err := resp.Decode(&started); err != nil {
		c.UI.Error(fmt.Sprintf("error reading started instance: %v", err))
		return 1
	}
	c.UI.Info(fmt.Sprintf("Started instance %s (task %s)", started.InstanceID, started.TaskID))

	if !c.flagWait {
		c.UI.Output(started.InstanceID)
		return 0
	}

	task, token, err := c.waitForTask(ctx, cfg, client, token, started.TaskID)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error waiting for task %s: %v", started.TaskID, err))
		return 1
	}

	code := 0
	if task.ExitCode != 0 {
		c.UI.Error(fmt.Sprintf("Job failed with exit code %d", task.ExitCode))
		code = 1
	} else {
		c.UI.Info("Job finished")
	}

	if c.flagCleanup {
		if resp := client.DeleteInstance(ctx, token, started.InstanceID); !resp.Success() {
			return c.Failed("error deleting instance", resp)
		}
		c.UI.Info("Deleted instance " + started.InstanceID)
	}

	c.UI.Output(started.InstanceID)
	return code
}

// waitForTask polls a task until it is done. The access token is renewed
// on each poll once it gets close to expiry; the latest one is returned.
func (c *RunCommand) waitForTask(ctx context.Context, cfg *dmapi.Config, client *dmapi.Client, token, taskID string) (dmapi.Task, string, error) {
	var task dmapi.Task

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.flagPollInterval), uint64(c.flagMaxPolls-1)),
		ctx,
	)
	err := backoff.Retry(func() error {
		var err error
		token, err = c.Token(ctx, cfg, client, token)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp := client.GetTask(ctx, token, taskID, 0, 0)
		if !resp.Success() {
			return backoff.Permanent(resp.Err())
		}
		task = dmapi.Task{}
		if err := resp.Decode(&task); err != nil {
			return backoff.Permanent(err)
		}
		if !task.Done {
			c.Log.Debug("task not done", "task_id", taskID, "events", len(task.Events))
			c.UI.Info("waiting ...")
			return errTaskRunning
		}
		return nil
	}, b)
	return task, token, err
}

func readSpec(path string) (*dmapi.JobSpecification, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading job specification: %w", err)
	}
	var spec dmapi.JobSpecification
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("error parsing job specification %s: %w", path, err)
	}
	if spec.Collection == "" || spec.Job == "" || spec.Version == "" {
		return nil, fmt.Errorf("job specification %s needs collection, job and version", path)
	}
	return &spec, nil
}
