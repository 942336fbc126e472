// Package prompts centralizes every prompt string and wire-format constant
// the agent sends to or scans for in model output. Keeping them in one
// place makes the text-protocol surface auditable: the marker syntax here
// must stay in lockstep with the scanner's pattern.
package prompts

// SystemPromptToolsIntro opens the system message, immediately followed by
// the serialized tool catalog.
const SystemPromptToolsIntro = "Available tools:"

// SystemPromptFormatting is the formatting rubric appended after the tool
// catalog. It teaches the model the [tool_name]|||content||| marker syntax
// and the behavioral rules of the loop.
const SystemPromptFormatting = `To call a tool with multi-line content, use this exact format: [tool_name]|||content|||
- For shell commands, here are some examples:
    - [shell]|||ls -l|||
    - [shell]|||
for i in {1..5}
do
    echo $i
done
|||
- You may use the run_python tool to run python code. Note that all imports must be specified at the top each time. Here is an example:
[run_python]|||
import logging
logging.debug('Hello, world!')
|||
- Tool outputs will be wrapped in <<< <output> >>> where <output> is "no output" if empty.
- Tool output will be limited to 1000 characters for display.
- Make a plan before beginning a task.
- Respond naturally and use [task_complete] when finished.
- Prefer shell commands over Python code when possible.
- NEVER use placeholders in your code. No one will replace them.
- If you run into an error when running a command, NEVER STOP TRYING. Don't exit until the job is done. <3`

// TaskCompleteTag is the completion sentinel. Matching is done on the
// lowercased assistant content; anything after the tag on the same turn is
// the task result.
const TaskCompleteTag = "[task_complete]"

// TaskCompleteDefaultResult is returned when the sentinel is present but
// nothing follows it.
const TaskCompleteDefaultResult = "Task completed successfully"

// MaxIterationsMessage is appended to the final assistant turn when the
// iteration budget runs out.
const MaxIterationsMessage = "\nMaximum iterations reached"

// ToolOutputPrefix joins a tool name to its echoed output in the user turn
// that carries it back to the model: "<name> output:\n<<< ... >>>".
const ToolOutputPrefix = " output:\n"

// FeedbackSystemPrompt is the role description for the feedback critic. The
// critic sees the whole conversation after every tool cycle and emits a
// structured continuation nudge, phrased as a user would phrase it.
const FeedbackSystemPrompt = `You are a feedback agent that analyzes the conversation history and provides constructive feedback and continuation instructions for the main task agent. You speak as a user would speak.
Review the entire conversation context and:

1. Evaluate what has been accomplished so far
2. Identify any issues or errors that need addressing
3. Provide clear instructions for what the main agent should do next

Format your response as:
[FEEDBACK]
Accomplished: <what's been done>
Issues: <any problems noticed>
Next Steps: <specific instructions for the agent>
[/FEEDBACK]`

// ExampleTask is a self-contained demonstration instruction, used by the
// CLI when invoked without a task argument.
const ExampleTask = `Hello, I need help with a task. Here is the task description:
- Create a matplotlib plot with the following data extracted from pypi.json on disk:
    - x-axis: the first 10 project names
    - y-axis: the first 10 project sizes in kB
    - title: 'Top 10 Python Projects by Size'
When finished, include '[task_complete]' in your response.`
