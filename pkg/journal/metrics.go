package journal

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/voxgate/callgateway/internal/core"
)

const slaThresholdMs = 1500

func loadMessages(ctx context.Context, tx pgx.Tx, conversationPK int64) ([]Message, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, sequence_number, role, content, processing_ms, stt_meta, llm_meta, tts_meta, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY sequence_number
	`, conversationPK)
	if err != nil {
		return nil, core.NewError("journal.loadMessages", core.ErrServerError, "query messages", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var sttRaw, llmRaw, ttsRaw []byte
		if err := rows.Scan(&m.ID, &m.SequenceNumber, &m.Role, &m.Content, &m.ProcessingMs, &sttRaw, &llmRaw, &ttsRaw, &m.CreatedAt); err != nil {
			return nil, core.NewError("journal.loadMessages", core.ErrServerError, "scan message", err)
		}
		m.ConversationID = conversationPK

		if len(sttRaw) > 0 {
			var meta STTMeta
			if err := json.Unmarshal(sttRaw, &meta); err == nil {
				m.STTMeta = &meta
			}
		}
		if len(llmRaw) > 0 {
			var meta LLMMeta
			if err := json.Unmarshal(llmRaw, &meta); err == nil {
				m.LLMMeta = &meta
			}
		}
		if len(ttsRaw) > 0 {
			var meta TTSMeta
			if err := json.Unmarshal(ttsRaw, &meta); err == nil {
				m.TTSMeta = &meta
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewError("journal.loadMessages", core.ErrServerError, "iterate messages", err)
	}
	return out, nil
}

// computeMetrics aggregates one conversation's Messages into a
// ConversationMetrics (§4.7: "counts per role; avg/min/max/sum of processing
// time; total input/output LLM tokens and USD cost; total TTS/STT cost; mean
// STT confidence; total audio seconds; SLA violations; error and retry
// counts"). ErrorCount and RetryCount are not computed: Message carries no
// error or retry data, so both are left at zero.
func computeMetrics(conversationPK int64, messages []Message) ConversationMetrics {
	m := ConversationMetrics{ConversationID: conversationPK}

	var confidenceSum float64
	var confidenceCount int64
	var processingCount int64

	for _, msg := range messages {
		m.TotalMessages++
		switch msg.Role {
		case RoleUser:
			m.UserMessages++
		case RoleAssistant:
			m.AssistantMessages++
		}

		if msg.ProcessingMs != nil {
			p := *msg.ProcessingMs
			m.SumProcessingMs += p
			if processingCount == 0 || p < m.MinProcessingMs {
				m.MinProcessingMs = p
			}
			if p > m.MaxProcessingMs {
				m.MaxProcessingMs = p
			}
			if p > slaThresholdMs {
				m.SLAViolations++
			}
			processingCount++
		}

		if msg.STTMeta != nil {
			confidenceSum += msg.STTMeta.Confidence
			confidenceCount++
			m.TotalAudioSecs += msg.STTMeta.AudioSecs
			m.TotalSTTCostUSD += msg.STTMeta.CostUSD
		}
		if msg.LLMMeta != nil {
			m.TotalLLMTokensIn += msg.LLMMeta.TokensIn
			m.TotalLLMTokensOut += msg.LLMMeta.TokensOut
			m.TotalLLMCostUSD += msg.LLMMeta.CostUSD
		}
		if msg.TTSMeta != nil {
			m.TotalTTSCostUSD += msg.TTSMeta.CostUSD
		}
	}

	if processingCount > 0 {
		m.AvgProcessingMs = float64(m.SumProcessingMs) / float64(processingCount)
	}
	if confidenceCount > 0 {
		m.MeanSTTConfidence = confidenceSum / float64(confidenceCount)
	}

	return m
}

func upsertMetrics(ctx context.Context, tx pgx.Tx, m ConversationMetrics) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO conversation_metrics (
			conversation_id, total_messages, user_messages, assistant_messages,
			avg_processing_ms, min_processing_ms, max_processing_ms, sum_processing_ms,
			total_llm_tokens_in, total_llm_tokens_out, total_llm_cost_usd,
			total_tts_cost_usd, total_stt_cost_usd, mean_stt_confidence, total_audio_secs,
			sla_violations, error_count, retry_count, computed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, now()
		)
		ON CONFLICT (conversation_id) DO UPDATE SET
			total_messages = EXCLUDED.total_messages,
			user_messages = EXCLUDED.user_messages,
			assistant_messages = EXCLUDED.assistant_messages,
			avg_processing_ms = EXCLUDED.avg_processing_ms,
			min_processing_ms = EXCLUDED.min_processing_ms,
			max_processing_ms = EXCLUDED.max_processing_ms,
			sum_processing_ms = EXCLUDED.sum_processing_ms,
			total_llm_tokens_in = EXCLUDED.total_llm_tokens_in,
			total_llm_tokens_out = EXCLUDED.total_llm_tokens_out,
			total_llm_cost_usd = EXCLUDED.total_llm_cost_usd,
			total_tts_cost_usd = EXCLUDED.total_tts_cost_usd,
			total_stt_cost_usd = EXCLUDED.total_stt_cost_usd,
			mean_stt_confidence = EXCLUDED.mean_stt_confidence,
			total_audio_secs = EXCLUDED.total_audio_secs,
			sla_violations = EXCLUDED.sla_violations,
			error_count = EXCLUDED.error_count,
			retry_count = EXCLUDED.retry_count,
			computed_at = now()
	`,
		m.ConversationID, m.TotalMessages, m.UserMessages, m.AssistantMessages,
		m.AvgProcessingMs, m.MinProcessingMs, m.MaxProcessingMs, m.SumProcessingMs,
		m.TotalLLMTokensIn, m.TotalLLMTokensOut, m.TotalLLMCostUSD,
		m.TotalTTSCostUSD, m.TotalSTTCostUSD, m.MeanSTTConfidence, m.TotalAudioSecs,
		m.SLAViolations, m.ErrorCount, m.RetryCount,
	)
	if err != nil {
		return core.NewError("journal.upsertMetrics", core.ErrServerError, "upsert conversation_metrics", err)
	}
	return nil
}
