package services

// titlePrompt asks the backend for a bare title. The language name is
// injected so a French opening message yields a French title.
const titlePrompt = `Generate a brief, concise title (max 6 words) for a conversation opening with the message below.
Answer in %s. Output the title only: no quotes, no colons, no explanation. YOU MUST ALWAYS OUTPUT SOMETHING.

Message:
%s`
