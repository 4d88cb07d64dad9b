/*
Package palette is a slash-command engine for chat composers.

It turns a user typing "/something" into either an immediately executed local
command or a parameterized prompt, collects the prompt's arguments step by step,
renders or fetches it, and streams command output into one transcript message
while staying cancellable.

# Concept

An Engine owns the state shared by one session: the item Registry, the Recency
Tracker and the Executor. Items come from sources (local commands, a template
directory, the prompts of remote providers) that load in parallel and fail
independently. Each input box gets its own Composer, which drives the cycle

	Idle → TokenActive → (Executing | ArgsCollecting) → Validating →
	(ResolvedTemplate | ResolvedRemote | Rejected → ArgsCollecting | Executing) →
	Streaming → (Completed | Errored | Aborted) → Idle

and publishes an Event for every transition. Every new action of a composer
cancels that composer's previous one; composers never cancel each other.

# Usage

	engine := palette.New(transcript,
		palette.WithPromptTransport(transport),
		palette.WithRemoteExecutor(httpAdapter.NewClient(endpoint)),
	)
	defer engine.Close()

	engine.Start(ctx)
	_ = engine.AddSource(ctx, commands)
	_ = engine.AddSource(ctx, registry.NewRemoteSource(transport, "lit"))

	c := engine.NewComposer(ctx)
	c.Input("/lit.search", 11)
	if err := c.Select(ctx); err != nil {
		return err
	}
	_ = c.SetArgument(ctx, "p53")
	if err := c.Submit(ctx); err != nil {
		return err
	}
	preview, _ := c.Preview()
*/
package palette
