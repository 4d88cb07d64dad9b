/*
Package runner implements the execution path of the palette engine.

It turns a resolved menu item into a byte stream and pipes that stream into a
single transcript message, remaining cancellable at every step.

# Key Components

  - Pipeline: the single chokepoint that opens an item. Local commands run
    in-process and their result is normalized; commands without a local
    implementation are posted to the remote execution endpoint.
  - Normalize: maps strings, bytes, readers, chunk channels and arbitrary
    values onto one stream shape.
  - Piper: applies chunks in order to the target message, with multi-byte
    safe decoding, and finalizes it as completed, errored or aborted.
  - Executor: allocates the target message, guards it against concurrent
    executions and runs the piper in the background.
  - AbortManager: the per-composer abort domain.

# Usage

	exec := runner.NewExecutor(
		runner.NewPipeline(runner.WithRemoteExecutor(client)),
		transcript,
		runner.WithNotifier(notifier),
	)

	h, err := exec.Execute(aborts.Next(), item, args)
	if err != nil {
		return err
	}
	outcome := h.Outcome()
*/
package runner
