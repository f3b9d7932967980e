// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/switchyard/cmd/switchyard/config"
	"github.com/AleutianAI/switchyard/pkg/ux"
)

// --- Global Command Variables ---
var (
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	// operation create/update flags
	opTitle       string
	opPurpose     string
	opURL         string
	opComponents  []string
	opLocks       []string
	opTags        []string
	opDependsOn   []string
	opOperators   []string
	opAnnotations map[string]string

	// operation create drafting flags
	draftPrompt string
	draftModel  string

	// operation list filters
	filterComponents []string
	filterTags       []string
	filterOperators  []string
	filterStatuses   []string

	// component flags
	componentDescription string
	componentOwners      []string

	// tag flags
	tagDescription string

	// watch flags
	watchJSON bool

	rootCmd = &cobra.Command{
		Use:   "switchyard",
		Short: "A cli to coordinate change operations on shared infrastructure",
		Long: `Switchyard tracks who is changing what: operations, the components
				they touch, the locks they hold, and the operators running them.
				Point it at a coordinator and it keeps everyone out of each
				other's way.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := config.Load(); err != nil {
				log.Fatalf("Error loading the switchyard config: %v", err)
			}
			// Initialize UX personality from flag or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
		},
	}

	// --- Auth ---
	authCmd = &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication against the coordinator",
	}
	loginCmd = &cobra.Command{
		Use:   "login [username]",
		Short: "Authenticate and store a bearer token for later commands",
		Run:   runLogin, // Defined in cmd_auth.go
	}

	// --- Components ---
	componentCmd = &cobra.Command{
		Use:   "component",
		Short: "Manage the shared components operations act on",
	}
	componentCreateCmd = &cobra.Command{
		Use:   "create [name]",
		Short: "Register a new shared component",
		Args:  cobra.ExactArgs(1),
		Run:   runComponentCreate, // Defined in cmd_component.go
	}
	componentGetCmd = &cobra.Command{
		Use:   "get [name]",
		Short: "Show a single component",
		Args:  cobra.ExactArgs(1),
		Run:   runComponentGet, // Defined in cmd_component.go
	}
	componentListCmd = &cobra.Command{
		Use:   "list",
		Short: "List all registered components",
		Run:   runComponentList, // Defined in cmd_component.go
	}

	// --- Tags ---
	tagCmd = &cobra.Command{
		Use:   "tag",
		Short: "Manage the tags operations can carry",
	}
	tagCreateCmd = &cobra.Command{
		Use:   "create [name]",
		Short: "Register a new tag",
		Args:  cobra.ExactArgs(1),
		Run:   runTagCreate, // Defined in cmd_tag.go
	}
	tagGetCmd = &cobra.Command{
		Use:   "get [name]",
		Short: "Show a single tag",
		Args:  cobra.ExactArgs(1),
		Run:   runTagGet, // Defined in cmd_tag.go
	}
	tagListCmd = &cobra.Command{
		Use:   "list",
		Short: "List all registered tags",
		Run:   runTagList, // Defined in cmd_tag.go
	}

	// --- Operations ---
	operationCmd = &cobra.Command{
		Use:     "operation",
		Short:   "Manage change operations",
		Aliases: []string{"op"},
	}
	operationCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Plan a new change operation",
		Long: `Creates an operation in the planned state. With no --title the
				command opens an interactive form; with --draft it asks a local
				model to draft the title and purpose from your prompt first.`,
		Run: runOperationCreate, // Defined in cmd_operation.go
	}
	operationGetCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Show a single operation",
		Args:  cobra.ExactArgs(1),
		Run:   runOperationGet, // Defined in cmd_operation.go
	}
	operationListCmd = &cobra.Command{
		Use:   "list",
		Short: "List operations, optionally filtered",
		Run:   runOperationList, // Defined in cmd_operation.go
	}
	operationUpdateCmd = &cobra.Command{
		Use:   "update [id]",
		Short: "Update fields of an existing operation",
		Args:  cobra.ExactArgs(1),
		Run:   runOperationUpdate, // Defined in cmd_operation.go
	}
	operationStartCmd = &cobra.Command{
		Use:   "start [id]",
		Short: "Move an operation to in_progress and take its locks",
		Args:  cobra.ExactArgs(1),
		Run:   makeStatusCommand("in_progress"), // Defined in cmd_operation.go
	}
	operationPauseCmd = &cobra.Command{
		Use:   "pause [id]",
		Short: "Pause a running operation (locks are kept)",
		Args:  cobra.ExactArgs(1),
		Run:   makeStatusCommand("paused"),
	}
	operationCompleteCmd = &cobra.Command{
		Use:   "complete [id]",
		Short: "Mark a running operation as completed",
		Args:  cobra.ExactArgs(1),
		Run:   makeStatusCommand("completed"),
	}
	operationAbortCmd = &cobra.Command{
		Use:   "abort [id]",
		Short: "Abort a running operation",
		Args:  cobra.ExactArgs(1),
		Run:   makeStatusCommand("aborted"),
	}
	operationCancelCmd = &cobra.Command{
		Use:   "cancel [id]",
		Short: "Cancel a planned operation before it starts",
		Args:  cobra.ExactArgs(1),
		Run:   makeStatusCommand("canceled"),
	}

	// --- Subscriptions ---
	subscribeCmd = &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe to changes on an operation, component, or tag",
	}
	subscribeOperationCmd = &cobra.Command{
		Use:   "operation [id]",
		Short: "Follow a single operation",
		Args:  cobra.ExactArgs(1),
		Run:   runSubscribeOperation, // Defined in cmd_subscribe.go
	}
	subscribeComponentCmd = &cobra.Command{
		Use:   "component [name]",
		Short: "Follow every operation touching a component",
		Args:  cobra.ExactArgs(1),
		Run:   runSubscribeComponent, // Defined in cmd_subscribe.go
	}
	subscribeTagCmd = &cobra.Command{
		Use:   "tag [name]",
		Short: "Follow every operation carrying a tag",
		Args:  cobra.ExactArgs(1),
		Run:   runSubscribeTag, // Defined in cmd_subscribe.go
	}
	subscriptionsCmd = &cobra.Command{
		Use:   "subscriptions",
		Short: "List your current subscriptions",
		Run:   runListSubscriptions, // Defined in cmd_subscribe.go
	}

	// --- Watch ---
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Stream live operation changes matching your subscriptions",
		Long: `Opens a live view of the operations you are subscribed to. In a
				terminal this is an updating table; piped or with --json it
				emits one JSON object per line.`,
		Run: runWatch, // Defined in cmd_watch.go
	}
)

// init runs when the Go program starts
func init() {
	// Global UX personality flag
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default, rich rail-yard), standard, minimal, or machine (scripting)")

	// auth commands
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)

	// component commands
	rootCmd.AddCommand(componentCmd)
	componentCmd.AddCommand(componentCreateCmd)
	componentCmd.AddCommand(componentGetCmd)
	componentCmd.AddCommand(componentListCmd)
	componentCreateCmd.Flags().StringVar(&componentDescription, "description", "", "What this component is")
	componentCreateCmd.Flags().StringSliceVar(&componentOwners, "owners", nil,
		"Users responsible for the component (defaults to you)")

	// tag commands
	rootCmd.AddCommand(tagCmd)
	tagCmd.AddCommand(tagCreateCmd)
	tagCmd.AddCommand(tagGetCmd)
	tagCmd.AddCommand(tagListCmd)
	tagCreateCmd.Flags().StringVar(&tagDescription, "description", "", "What this tag marks")

	// operation commands
	rootCmd.AddCommand(operationCmd)
	operationCmd.AddCommand(operationCreateCmd)
	operationCmd.AddCommand(operationGetCmd)
	operationCmd.AddCommand(operationListCmd)
	operationCmd.AddCommand(operationUpdateCmd)
	operationCmd.AddCommand(operationStartCmd)
	operationCmd.AddCommand(operationPauseCmd)
	operationCmd.AddCommand(operationCompleteCmd)
	operationCmd.AddCommand(operationAbortCmd)
	operationCmd.AddCommand(operationCancelCmd)

	operationCreateCmd.Flags().StringVar(&opTitle, "title", "", "One-line summary of the change")
	operationCreateCmd.Flags().StringVar(&opPurpose, "purpose", "", "Why the change is happening")
	operationCreateCmd.Flags().StringVar(&opURL, "url", "", "Link to the runbook, ticket, or PR")
	operationCreateCmd.Flags().StringSliceVar(&opComponents, "components", nil, "Components the operation touches")
	operationCreateCmd.Flags().StringSliceVar(&opLocks, "locks", nil,
		"Components to lock exclusively (must be listed in --components)")
	operationCreateCmd.Flags().StringSliceVar(&opTags, "tags", nil, "Tags to attach")
	operationCreateCmd.Flags().StringSliceVar(&opDependsOn, "depends-on", nil,
		"Operation ids that must finish first")
	operationCreateCmd.Flags().StringSliceVar(&opOperators, "operators", nil,
		"Users running the operation (defaults to you)")
	operationCreateCmd.Flags().StringToStringVar(&opAnnotations, "annotate", nil,
		"Free-form key=value annotations")
	operationCreateCmd.Flags().StringVar(&draftPrompt, "draft", "",
		"Describe the change and let a local model draft the title and purpose")
	operationCreateCmd.Flags().StringVar(&draftModel, "draft-model", "",
		"Override the ollama model used for drafting")

	operationUpdateCmd.Flags().StringVar(&opTitle, "title", "", "New title")
	operationUpdateCmd.Flags().StringVar(&opPurpose, "purpose", "", "New purpose")
	operationUpdateCmd.Flags().StringVar(&opURL, "url", "", "New URL")
	operationUpdateCmd.Flags().StringSliceVar(&opComponents, "components", nil, "Replacement component list")
	operationUpdateCmd.Flags().StringSliceVar(&opLocks, "locks", nil, "Replacement lock list")
	operationUpdateCmd.Flags().StringSliceVar(&opTags, "tags", nil, "Replacement tag list")
	operationUpdateCmd.Flags().StringSliceVar(&opDependsOn, "depends-on", nil, "Replacement dependency list")
	operationUpdateCmd.Flags().StringSliceVar(&opOperators, "operators", nil, "Replacement operator list")
	operationUpdateCmd.Flags().StringToStringVar(&opAnnotations, "annotate", nil,
		"Annotations to merge in (key=value)")
	operationUpdateCmd.Flags().String("status", "",
		"New status (planned, in_progress, paused, completed, aborted, canceled)")

	operationListCmd.Flags().StringSliceVar(&filterComponents, "component", nil, "Only operations touching these components")
	operationListCmd.Flags().StringSliceVar(&filterTags, "tag", nil, "Only operations carrying these tags")
	operationListCmd.Flags().StringSliceVar(&filterOperators, "operator", nil, "Only operations run by these users")
	operationListCmd.Flags().StringSliceVar(&filterStatuses, "status", nil, "Only operations in these states")

	// subscription commands
	rootCmd.AddCommand(subscribeCmd)
	subscribeCmd.AddCommand(subscribeOperationCmd)
	subscribeCmd.AddCommand(subscribeComponentCmd)
	subscribeCmd.AddCommand(subscribeTagCmd)
	rootCmd.AddCommand(subscriptionsCmd)

	// watch command
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Emit newline-delimited JSON instead of the live table")
}
