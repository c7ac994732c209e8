package instance

// Selectors and scripts of the task page protocol. Task pages load core.js,
// which exposes the episode controls on the global `core` object and the
// episode outcome in WOB_* globals.
const (
	syncCoverSelector = "#sync-task-cover"
	taskAreaID        = "area"

	endEpisodeJS   = "() => core.endEpisode(0)"
	seedJS         = "seed => Math.seedrandom(seed)"
	setDataModeJS  = "mode => core.setDataMode(mode)"
	startEpisodeJS = "() => core.startEpisodeReal()"

	metadataJS = `() => ({
		raw_reward: WOB_RAW_REWARD_GLOBAL,
		env_reward: WOB_REWARD_GLOBAL,
		done: WOB_DONE_GLOBAL,
		reason: typeof WOB_REWARD_REASON === 'undefined' ? '' : String(WOB_REWARD_REASON || ''),
	})`

	stateJS = `() => ({
		utterance: core.getUtterance(),
		fields: typeof core.getFields === 'function' ? core.getFields() : {},
		dom: core.getDOMInfo(),
	})`

	elementCenterJS = `ref => {
		const el = core.getElementByRef(ref);
		if (!el) throw new Error('no element with ref ' + ref);
		const r = el.getBoundingClientRect();
		return {x: r.left + r.width / 2, y: r.top + r.height / 2};
	}`

	visualizeAttentionJS = "grid => core.visualizeAttention(grid)"
)
