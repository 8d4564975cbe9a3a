package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/vtour-agent-core/server/internal/agent/graph/conversations"
	"github.com/vtour-agent-core/server/internal/agent/graph/formatter"
	"github.com/vtour-agent-core/server/internal/agent/graph/nodes"
	"github.com/vtour-agent-core/server/internal/agent/graph/tools"
	"github.com/vtour-agent-core/server/internal/agent/intent"
	"github.com/vtour-agent-core/server/internal/agent/model"
	"github.com/vtour-agent-core/server/internal/agent/router"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

const maxRunSteps = 20

// GraphConfig holds the components each node of the turn graph needs.
type GraphConfig struct {
	Classifier *intent.Classifier
	Tools      *tools.Executor
	Builder    *conversations.Builder
	Router     *router.Router
	Formatter  *formatter.Formatter
}

func (c *GraphConfig) validate() error {
	switch {
	case c == nil:
		return fmt.Errorf("graph config is nil")
	case c.Classifier == nil:
		return fmt.Errorf("classifier is nil")
	case c.Tools == nil:
		return fmt.Errorf("tool executor is nil")
	case c.Builder == nil:
		return fmt.Errorf("context builder is nil")
	case c.Router == nil:
		return fmt.Errorf("model router is nil")
	case c.Formatter == nil:
		return fmt.Errorf("formatter is nil")
	}
	return nil
}

// GraphBuilder handles the construction of the turn graph.
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[*model.Turn, *model.Turn]
}

// BuildGraph constructs and compiles the turn graph:
//
//	classify -> tools -> (format | context -> model -> format)
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[*model.Turn, *model.Turn], error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	b := &GraphBuilder{
		config: config,
		graph:  compose.NewGraph[*model.Turn, *model.Turn](),
	}
	if err := b.addNodes(); err != nil {
		return nil, err
	}
	if err := b.addEdges(); err != nil {
		return nil, err
	}
	if err := b.addBranches(); err != nil {
		return nil, err
	}
	return b.compile(ctx)
}

func (b *GraphBuilder) addNodes() error {
	c := b.config
	lambdas := []struct {
		name string
		node *compose.Lambda
	}{
		{nodes.NodeClassify, nodes.NewClassifyNode(c.Classifier)},
		{nodes.NodeTools, nodes.NewToolsNode(c.Tools)},
		{nodes.NodeContext, nodes.NewContextNode(c.Builder, c.Tools, c.Router)},
		{nodes.NodeModel, nodes.NewModelNode(c.Router)},
		{nodes.NodeFormat, nodes.NewFormatNode(c.Formatter)},
	}
	for _, l := range lambdas {
		if err := b.graph.AddLambdaNode(l.name, l.node, compose.WithNodeName(l.name)); err != nil {
			return fmt.Errorf("add node %s: %w", l.name, err)
		}
	}
	return nil
}

func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeClassify},
		{nodes.NodeClassify, nodes.NodeTools},
		{nodes.NodeContext, nodes.NodeModel},
		{nodes.NodeModel, nodes.NodeFormat},
		{nodes.NodeFormat, compose.END},
	}
	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

func (b *GraphBuilder) addBranches() error {
	toolOnly := compose.NewGraphBranch(
		nodes.NewToolOnlyCondition(),
		map[string]bool{
			nodes.NodeFormat:  true,
			nodes.NodeContext: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeTools, toolOnly); err != nil {
		logx.Error().Err(err).Msg("Error adding tool-only branch")
		return fmt.Errorf("error adding tool-only branch: %w", err)
	}
	return nil
}

func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.Turn, *model.Turn], error) {
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("AgentTurn"),
		compose.WithMaxRunSteps(maxRunSteps),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	logx.Debug().Msg("Turn graph compiled")
	return runnable, nil
}
