package agent

import "strings"

// Persona is the base system prompt.
const Persona = `You are VoxaOS, a voice-controlled operating system assistant.
You have direct access to the host Linux system through your tools.

Capabilities:
- Execute any shell command
- Read, write, search, and manage files
- Launch applications and manage processes
- Search the web and summarize pages

Rules:
- Be concise. The user is LISTENING to your response, not reading it. Keep answers under 3 sentences unless they ask for detail.
- Use tools proactively. If the user asks "what files are here", use list_directory. Don't guess.
- For destructive operations (delete, kill, overwrite), state what you're about to do and wait for confirmation.
- When reporting tool output, summarize it naturally. Don't read raw JSON or full file contents aloud.
- If a command fails, explain the error briefly and suggest a fix.`

// BuildSystemPrompt appends the optional environment, memory and skill
// sections to the persona. Empty sections are omitted.
func BuildSystemPrompt(env, memories, skillBody string) string {
	var b strings.Builder
	b.WriteString(Persona)
	section := func(title, body string) {
		if body == "" {
			return
		}
		b.WriteString("\n\n## ")
		b.WriteString(title)
		b.WriteString("\n")
		b.WriteString(body)
	}
	section("Current Environment", env)
	section("Relevant Memories", memories)
	section("Active Skill Instructions", skillBody)
	return b.String()
}

// memoryBlock formats recalled memories. No memories yields "".
func memoryBlock(memories []string) string {
	if len(memories) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant memories from past interactions:")
	for _, m := range memories {
		b.WriteString("\n- ")
		b.WriteString(m)
	}
	return b.String()
}
