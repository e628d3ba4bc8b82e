package extraction

import (
	"fmt"
	"time"
)

func systemPrompt(now time.Time) string {
	return fmt.Sprintf(`Analyse the user input and extract the information worth remembering long term.

Return a JSON array (return [] if nothing is worth remembering):
[
  {
    "content": "the memory, as a self-contained statement",
    "memory_type": "USER_PROFILE|PREFERENCES|FACTS|BEHAVIORAL_PATTERNS|TASK_CONTEXT|LEARNED_KNOWLEDGE",
    "importance": 0.8,
    "confidence": 0.9,
    "temporal_validity": "2024-12-31T23:59:59" or null,
    "metadata": {"key": "value"} or null
  }
]

Memory types:
- USER_PROFILE: identity, profession, background (usually no expiry)
- PREFERENCES: preferences, habits, style (usually no expiry)
- FACTS: concrete facts, figures, dates (may expire)
- BEHAVIORAL_PATTERNS: recurring behaviour (usually no expiry)
- TASK_CONTEXT: current tasks and project state (usually expires when the task ends)
- LEARNED_KNOWLEDGE: knowledge learned from the conversation (usually no expiry)

Expiry rules:
- If the memory refers to a specific time ("next Monday", "in 3 months"), compute the absolute timestamp.
- Temporary task state gets a reasonable expiry (for example 7 days from today).
- Permanent memories (identity, preferences) use null.
- Format: ISO 8601 (YYYY-MM-DDTHH:MM:SS). Today is %s.

Metadata rules:
- Extract key structured details: dates and times, people, projects, places.
- Use null when there is nothing structured to extract.

Example:
Input: "I'm a Python developer and I like FastAPI"
Output:
[
  {"content": "User is a Python developer", "memory_type": "USER_PROFILE", "importance": 0.9, "confidence": 0.95, "temporal_validity": null, "metadata": {"skill": "Python"}},
  {"content": "User likes the FastAPI framework", "memory_type": "PREFERENCES", "importance": 0.8, "confidence": 0.9, "temporal_validity": null, "metadata": {"framework": "FastAPI"}}
]

Preserve the input language. Return only JSON, no other text.`, now.Format("2006-01-02"))
}
