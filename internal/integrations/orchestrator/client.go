package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/rs/zerolog/log"

	"relay-pipeline/internal/domain"
)

// ecsAPI is the minimal ECS interface required by Client.
type ecsAPI interface {
	RunTask(ctx context.Context, in *ecs.RunTaskInput, optFns ...func(*ecs.Options)) (*ecs.RunTaskOutput, error)
}

// Network is the awsvpc placement shared by every launched task.
type Network struct {
	Subnets        []string
	SecurityGroups []string
	AssignPublicIP bool
}

// Client launches tasks on ECS.
type Client struct {
	api     ecsAPI
	network Network
}

func New(api ecsAPI, network Network) (*Client, error) {
	if api == nil {
		return nil, errors.New("orchestrator: api must not be nil")
	}
	if len(network.Subnets) == 0 {
		return nil, errors.New("orchestrator: at least one subnet is required")
	}
	if len(network.SecurityGroups) == 0 {
		return nil, errors.New("orchestrator: at least one security group is required")
	}
	return &Client{api: api, network: network}, nil
}

// RunTask starts a single task instance, overriding only the named
// container's command. The returned task carries the ARN of the first task
// the control plane reports; placement failures are logged, not returned.
func (c *Client) RunTask(ctx context.Context, task domain.DispatchedTask) (domain.DispatchedTask, error) {
	out, err := c.api.RunTask(ctx, c.runTaskInput(task))
	if err != nil {
		return task, fmt.Errorf("orchestrator: run task on %s: %w", task.Cluster, err)
	}
	if out == nil {
		return task, nil
	}

	for _, f := range out.Failures {
		log.Warn().
			Str("cluster", task.Cluster).
			Str("arn", aws.ToString(f.Arn)).
			Str("reason", aws.ToString(f.Reason)).
			Str("detail", aws.ToString(f.Detail)).
			Msg("ECS reported a task launch failure")
	}
	if len(out.Tasks) > 0 {
		task.TaskARN = aws.ToString(out.Tasks[0].TaskArn)
	}
	return task, nil
}

func (c *Client) runTaskInput(task domain.DispatchedTask) *ecs.RunTaskInput {
	assign := types.AssignPublicIpDisabled
	if c.network.AssignPublicIP {
		assign = types.AssignPublicIpEnabled
	}
	in := &ecs.RunTaskInput{
		Cluster:        aws.String(task.Cluster),
		TaskDefinition: aws.String(task.TaskDefinition),
		Count:          aws.Int32(1),
		NetworkConfiguration: &types.NetworkConfiguration{
			AwsvpcConfiguration: &types.AwsVpcConfiguration{
				Subnets:        c.network.Subnets,
				SecurityGroups: c.network.SecurityGroups,
				AssignPublicIp: assign,
			},
		},
		Overrides: &types.TaskOverride{
			ContainerOverrides: []types.ContainerOverride{
				{
					Name:    aws.String(task.Container),
					Command: task.Command,
				},
			},
		},
	}
	if task.LaunchType != "" {
		in.LaunchType = types.LaunchType(task.LaunchType)
	}
	return in
}
